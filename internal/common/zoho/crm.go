package zoho

import (
	"context"
	"fmt"
	"strings"
	"time"

	httpclient "assistant-workers/internal/common/http"
)

// CRMClient pushes converted conversations into Zoho CRM as Leads.
type CRMClient struct {
	oauthToken string
	baseURL    string
	http       *httpclient.Client
}

// Lead is the subset of the Zoho Leads module the assistant fills in.
type Lead struct {
	Company     string `json:"Company"`
	LastName    string `json:"Last_Name"`
	LeadSource  string `json:"Lead_Source"`
	LeadStatus  string `json:"Lead_Status,omitempty"`
	Description string `json:"Description,omitempty"`
	Rating      string `json:"Rating,omitempty"`
}

type upsertResponse struct {
	Data []struct {
		Code    string `json:"code"`
		Details struct {
			ID string `json:"id"`
		} `json:"details"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"data"`
}

func NewCRMClient(baseURL, oauthToken string) *CRMClient {
	if baseURL == "" {
		baseURL = "https://www.zohoapis.com/crm/v2"
	}
	return &CRMClient{
		oauthToken: oauthToken,
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       httpclient.NewClient(15 * time.Second),
	}
}

// CreateLead returns the Zoho record ID of the new lead.
func (c *CRMClient) CreateLead(ctx context.Context, lead Lead) (string, error) {
	var resp upsertResponse
	err := c.http.PostJSON(ctx, c.baseURL+"/Leads",
		map[string]string{"Authorization": "Zoho-oauthtoken " + c.oauthToken},
		map[string]interface{}{"data": []Lead{lead}}, &resp)
	if err != nil {
		return "", fmt.Errorf("create lead: %w", err)
	}

	if len(resp.Data) == 0 {
		return "", fmt.Errorf("create lead: empty response")
	}
	if resp.Data[0].Status != "success" {
		return "", fmt.Errorf("create lead: %s (%s)", resp.Data[0].Message, resp.Data[0].Code)
	}
	return resp.Data[0].Details.ID, nil
}
