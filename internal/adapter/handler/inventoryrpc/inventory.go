// Package inventoryrpc defines the inventory.v1.InventoryService wire types,
// service descriptor and client. Messages travel as JSON.
package inventoryrpc

type AdjustInventoryRequest struct {
	OrganizationId string `json:"organizationId"`
	InventoryId    string `json:"inventoryId"`
	Delta          int32  `json:"delta"`
	CommandId      string `json:"commandId"`
}

func (r *AdjustInventoryRequest) GetOrganizationId() string {
	if r == nil {
		return ""
	}
	return r.OrganizationId
}

type AdjustInventoryResponse struct {
	Ok       bool   `json:"ok"`
	NewLevel int32  `json:"newLevel"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

type GetInventoryRequest struct {
	OrganizationId string `json:"organizationId"`
	ProductName    string `json:"productName"`
}

func (r *GetInventoryRequest) GetOrganizationId() string {
	if r == nil {
		return ""
	}
	return r.OrganizationId
}

type InventoryItem struct {
	ProductName string `json:"productName"`
	ProjectId   string `json:"projectId"`
	StockLevel  int32  `json:"stockLevel"`
	Version     int32  `json:"version"`
	UpdatedAt   string `json:"updatedAt"`
}

type GetInventoryResponse struct {
	Ok      bool           `json:"ok"`
	Item    *InventoryItem `json:"item,omitempty"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message,omitempty"`
}
