package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

var (
	ErrUnauthenticated = errors.New("missing or invalid bearer token")
	ErrForbidden       = errors.New("token is not valid for this organization")
)

// TenantClaims binds a bearer token to one organization.
type TenantClaims struct {
	OrganizationID string `json:"organizationId"`
	jwt.RegisteredClaims
}

type claimsKey struct{}

// TenantAuth verifies HS256 bearer tokens. A nil *TenantAuth disables
// authentication and every method passes requests through.
type TenantAuth struct {
	secret []byte
	issuer string
}

func NewTenantAuth(secret, issuer string) *TenantAuth {
	if secret == "" {
		return nil
	}
	return &TenantAuth{secret: []byte(secret), issuer: issuer}
}

// Issue signs a token for organizationID. Used by the seed tool and tests.
func (a *TenantAuth) Issue(organizationID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := TenantClaims{
		OrganizationID: organizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *TenantAuth) Authenticate(authorization string) (*TenantClaims, error) {
	raw, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || raw == "" {
		return nil, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &TenantClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil || claims.OrganizationID == "" {
		return nil, ErrUnauthenticated
	}
	return claims, nil
}

// Middleware rejects requests without a valid token and stores the claims
// for authorizeTenant.
func (a *TenantAuth) Middleware(next http.Handler) http.Handler {
	if a == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := a.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Code: "unauthenticated", Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

type tenantScoped interface {
	GetOrganizationId() string
}

// UnaryInterceptor authenticates RPCs and checks the request's organization
// against the token.
func (a *TenantAuth) UnaryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if a == nil {
			return handler(ctx, req)
		}

		var authorization string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				authorization = values[0]
			}
		}

		claims, err := a.Authenticate(authorization)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}
		ctx = context.WithValue(ctx, claimsKey{}, claims)

		if scoped, ok := req.(tenantScoped); ok {
			if err := authorizeTenant(ctx, scoped.GetOrganizationId()); err != nil {
				return nil, status.Error(codes.PermissionDenied, err.Error())
			}
		}
		return handler(ctx, req)
	}
}

// authorizeTenant passes when authentication is disabled or the token was
// issued for organizationID.
func authorizeTenant(ctx context.Context, organizationID string) error {
	claims, ok := ctx.Value(claimsKey{}).(*TenantClaims)
	if !ok {
		return nil
	}
	if claims.OrganizationID != organizationID {
		return ErrForbidden
	}
	return nil
}
