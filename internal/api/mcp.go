package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/siampass/internal/chat"
	"github.com/kalambet/siampass/internal/loyalty"
	"github.com/kalambet/siampass/internal/recommend"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Recommendations *recommend.Cache
	Guide           chat.Backend
	Loyalty         *loyalty.Manager // optional; if nil, loyalty tools and resources are not registered
}

// NewMCPServer creates an MCP server exposing the guide's recommendations,
// conversation and loyalty account as tools and resources.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"siampass",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("siampass: Thai travel recommendations, a conversational local guide, and the traveler's loyalty passport."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("province_recommendations",
			mcp.WithDescription("List recommended attractions or restaurants for a Thai province."),
			mcp.WithString("province", mcp.Description("Province name, e.g. Chiang Mai"), mcp.Required()),
			mcp.WithString("tab", mcp.Description("attractions (default) or restaurants")),
			mcp.WithString("category", mcp.Description("Only return items in this category (default all)")),
		),
		mcpProvinceRecommendations(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_guide",
			mcp.WithDescription("Ask the local guide a question. Pass the returned session_id back to continue the conversation."),
			mcp.WithString("question", mcp.Description("The question for the guide"), mcp.Required()),
			mcp.WithString("session_id", mcp.Description("Session to continue; omit to start a new one")),
		),
		mcpAskGuide(deps),
	)

	s.AddTool(
		mcp.NewTool("end_guide_session",
			mcp.WithDescription("Discard a conversation started by ask_guide."),
			mcp.WithString("session_id", mcp.Description("Session returned by ask_guide"), mcp.Required()),
		),
		mcpEndGuideSession(deps),
	)

	if deps.Loyalty != nil {
		s.AddTool(
			mcp.NewTool("redeem_reward",
				mcp.WithDescription("Spend loyalty points on a reward from the catalog."),
				mcp.WithString("reward_id", mcp.Description("Reward id, e.g. thai-tea"), mcp.Required()),
			),
			mcpRedeemReward(deps),
		)

		s.AddResource(
			mcp.NewResource(
				"loyalty://profile",
				"Loyalty Profile",
				mcp.WithResourceDescription("Member, stamp passport, reward catalog and redemptions as JSON"),
				mcp.WithMIMEType("application/json"),
			),
			mcpResourceProfile(deps),
		)
	}

	// Resources
	s.AddResource(
		mcp.NewResource(
			"guide://provinces",
			"Popular Provinces",
			mcp.WithResourceDescription("Provinces offered on the travel guide's landing grid"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProvinces(),
	)

	return s
}

func mcpProvinceRecommendations(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		province, err := req.RequireString("province")
		province = strings.TrimSpace(province)
		if err != nil || province == "" {
			return mcpError("province is required"), nil
		}

		tab := recommend.TabAttractions
		if raw := req.GetString("tab", ""); raw != "" {
			t, ok := recommend.ParseTab(raw)
			if !ok {
				return mcpError(fmt.Sprintf("unknown tab %q", raw)), nil
			}
			tab = t
		}
		category := req.GetString("category", recommend.AllCategories)

		data, err := deps.Recommendations.Fetch(ctx, province)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load recommendations for %s: %v", province, err)), nil
		}

		b, err := json.Marshal(recommend.Filter(data.Items(tab), category))
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskGuide(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil || strings.TrimSpace(question) == "" {
			return mcpError("question is required"), nil
		}

		id := chat.SessionID(req.GetString("session_id", ""))
		if id == "" {
			id, err = deps.Guide.StartSession(ctx)
			if err != nil {
				return mcpError(fmt.Sprintf("failed to start session: %v", err)), nil
			}
		}

		reply, err := deps.Guide.Reply(ctx, id, question)
		if err != nil {
			return mcpError(fmt.Sprintf("guide did not answer: %v", err)), nil
		}

		b, err := json.Marshal(map[string]string{
			"session_id": string(id),
			"reply":      reply,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal reply: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpEndGuideSession(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil || strings.TrimSpace(id) == "" {
			return mcpError("session_id is required"), nil
		}
		if err := deps.Guide.EndSession(ctx, chat.SessionID(id)); err != nil {
			return mcpError(fmt.Sprintf("failed to end session: %v", err)), nil
		}
		return mcpText("Session " + id + " ended"), nil
	}
}

func mcpRedeemReward(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		rewardID, err := req.RequireString("reward_id")
		if err != nil {
			return mcpError("reward_id is required"), nil
		}

		red, err := deps.Loyalty.Redeem(rewardID)
		switch {
		case errors.Is(err, loyalty.ErrInsufficientPoints):
			return mcpError(fmt.Sprintf("not enough points for %s", rewardID)), nil
		case err != nil:
			return mcpError(fmt.Sprintf("redeem failed: %v", err)), nil
		}

		return mcpText(fmt.Sprintf("Redeemed %s for %d points (redemption %s)", red.RewardID, red.Cost, red.ID)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		p, err := deps.Loyalty.GetProfile()
		if err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}

		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceProvinces() server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(recommend.PopularProvinces)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal provinces: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
