// Package main seeds MySQL with one organization project and its inventory so
// the adjust-then-query flow can be exercised by hand.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/rl1809/inventory-projection/internal/adapter/handler"
	"github.com/rl1809/inventory-projection/internal/adapter/storage"
	"github.com/rl1809/inventory-projection/internal/config"
	"github.com/rl1809/inventory-projection/internal/core/domain"
)

func main() {
	var (
		orgID   string
		project string
		items   string
	)
	flag.StringVar(&orgID, "org", "", "organization id (default: new uuid)")
	flag.StringVar(&project, "project", "Spring Collection", "project name")
	flag.StringVar(&items, "items", "Jeans=20", "comma separated name=level pairs")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	if orgID == "" {
		orgID = uuid.NewString()
	}

	stock, err := parseItems(items)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	if err := storage.EnsureSchema(ctx, db); err != nil {
		fatal(err)
	}

	adapter := storage.NewMySQLAdapter(db)
	p := domain.Project{ID: uuid.NewString(), TenantID: orgID, Name: project}
	if err := adapter.CreateProject(ctx, p); err != nil {
		fatal(err)
	}

	fmt.Printf("organization %s\n", orgID)
	fmt.Printf("project      %s (%s)\n", p.ID, p.Name)
	for _, item := range stock {
		inv := domain.Inventory{
			ID:          uuid.NewString(),
			ProjectID:   p.ID,
			TenantID:    orgID,
			ProductName: item.name,
			StockLevel:  item.level,
		}
		if err := adapter.CreateInventory(ctx, inv); err != nil {
			fatal(err)
		}
		fmt.Printf("inventory    %s %s=%d\n", inv.ID, inv.ProductName, inv.StockLevel)
	}

	if auth := handler.NewTenantAuth(cfg.Auth.JWTSecret, cfg.Auth.Issuer); auth != nil {
		token, err := auth.Issue(orgID, 24*time.Hour)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("token        %s\n", token)
	}
}

type seedItem struct {
	name  string
	level int
}

func parseItems(s string) ([]seedItem, error) {
	var out []seedItem
	for _, pair := range strings.Split(s, ",") {
		name, level, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid item %q, want name=level", pair)
		}
		n, err := strconv.Atoi(level)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid level for %s: %q", name, level)
		}
		out = append(out, seedItem{name: name, level: n})
	}
	return out, nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
