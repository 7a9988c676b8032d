package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/clients/secedgar"
	"github.com/cbottock-ai/VeraScore/internal/llm"
	"github.com/cbottock-ai/VeraScore/internal/modules/portfolios"
	"github.com/cbottock-ai/VeraScore/internal/modules/stocks"
	"github.com/cbottock-ai/VeraScore/internal/rag"
	"github.com/cbottock-ai/VeraScore/internal/scoring"
)

// StockData supplies stock lookups for tool calls.
type StockData interface {
	Search(ctx context.Context, query string, limit int) (*stocks.SearchResponse, error)
	GetStockInfo(ctx context.Context, ticker string) (map[string]interface{}, error)
	GetFundamentals(ctx context.Context, ticker string) (map[string]interface{}, error)
}

// PortfolioStore supplies portfolio operations for tool calls.
type PortfolioStore interface {
	List() ([]portfolios.Summary, error)
	Get(ctx context.Context, id int64) (*portfolios.Detail, error)
	Create(name string, description *string) (*portfolios.Portfolio, error)
	AddHolding(portfolioID int64, h portfolios.Holding) (*portfolios.Holding, error)
	DeleteHolding(id int64) (bool, error)
}

// TranscriptSearcher supplies semantic transcript search for tool calls.
type TranscriptSearcher interface {
	Search(ctx context.Context, query, ticker string, topK int) (*rag.SearchResponse, error)
}

// FilingsClient supplies SEC filings for tool calls.
type FilingsClient interface {
	RecentFilings(ctx context.Context, ticker string, formTypes []string, limit int) ([]secedgar.Filing, error)
}

// ToolRegistry implements llm.ToolExecutor over the application services.
type ToolRegistry struct {
	stocks      StockData
	portfolios  PortfolioStore
	engine      *scoring.Engine
	transcripts TranscriptSearcher
	filings     FilingsClient
	log         zerolog.Logger
}

// NewToolRegistry creates the chat tool registry.
func NewToolRegistry(stockData StockData, portfolioStore PortfolioStore, engine *scoring.Engine, transcripts TranscriptSearcher, filings FilingsClient, log zerolog.Logger) *ToolRegistry {
	return &ToolRegistry{
		stocks:      stockData,
		portfolios:  portfolioStore,
		engine:      engine,
		transcripts: transcripts,
		filings:     filings,
		log:         log.With().Str("component", "chat_tools").Logger(),
	}
}

// Definitions returns the provider-neutral tool catalog.
func (t *ToolRegistry) Definitions() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        "search_stocks",
			Description: "Search for stocks by name or ticker symbol. Returns matching companies with their ticker, name, and exchange.",
			Params: []llm.ToolParam{
				{Name: "query", Type: "string", Description: "Search query (company name or ticker)", Required: true},
				{Name: "limit", Type: "integer", Description: "Max results to return"},
			},
		},
		{
			Name:        "get_stock_info",
			Description: "Get current stock information including price, market cap, sector, and key metrics for a given ticker.",
			Params: []llm.ToolParam{
				{Name: "ticker", Type: "string", Description: "Stock ticker symbol (e.g. AAPL)", Required: true},
			},
		},
		{
			Name:        "get_fundamentals",
			Description: "Get detailed fundamental data for a stock including valuation, growth, profitability, quality, momentum, dividend, and analyst data.",
			Params: []llm.ToolParam{
				{Name: "ticker", Type: "string", Description: "Stock ticker symbol", Required: true},
			},
		},
		{
			Name:        "get_stock_score",
			Description: "Get the VeraScore composite score for a stock. Returns overall score (0-100) and factor breakdowns (valuation, growth, profitability, quality, momentum).",
			Params: []llm.ToolParam{
				{Name: "ticker", Type: "string", Description: "Stock ticker symbol", Required: true},
			},
		},
		{
			Name:        "get_factor_score",
			Description: "Get a detailed score for a single factor (valuation, growth, profitability, quality, or momentum) for a stock.",
			Params: []llm.ToolParam{
				{Name: "ticker", Type: "string", Description: "Stock ticker symbol", Required: true},
				{Name: "factor", Type: "string", Description: "Factor name: valuation, growth, profitability, quality, or momentum", Required: true},
			},
		},
		{
			Name:        "list_portfolios",
			Description: "List all portfolios with their names, descriptions, and holdings count.",
		},
		{
			Name:        "get_portfolio",
			Description: "Get detailed portfolio information including all holdings with current prices, gains/losses, and scores.",
			Params: []llm.ToolParam{
				{Name: "portfolio_id", Type: "integer", Description: "Portfolio ID", Required: true},
			},
		},
		{
			Name:        "create_portfolio",
			Description: "Create a new investment portfolio.",
			Params: []llm.ToolParam{
				{Name: "name", Type: "string", Description: "Portfolio name", Required: true},
				{Name: "description", Type: "string", Description: "Optional description"},
			},
		},
		{
			Name:        "add_holding",
			Description: "Add a stock holding to a portfolio.",
			Params: []llm.ToolParam{
				{Name: "portfolio_id", Type: "integer", Description: "Portfolio ID", Required: true},
				{Name: "ticker", Type: "string", Description: "Stock ticker symbol", Required: true},
				{Name: "shares", Type: "number", Description: "Number of shares", Required: true},
				{Name: "cost_basis", Type: "number", Description: "Total cost basis in dollars", Required: true},
			},
		},
		{
			Name:        "remove_holding",
			Description: "Remove a holding from a portfolio by holding ID.",
			Params: []llm.ToolParam{
				{Name: "holding_id", Type: "integer", Description: "Holding ID to remove", Required: true},
			},
		},
		{
			Name:        "search_earnings_transcripts",
			Description: "Search earnings call transcripts using semantic search. Find what companies said about specific topics like AI, margins, guidance, etc.",
			Params: []llm.ToolParam{
				{Name: "query", Type: "string", Description: "Search query (e.g. 'AI strategy', 'margin expansion', 'guidance')", Required: true},
				{Name: "ticker", Type: "string", Description: "Optional: limit search to specific ticker"},
				{Name: "top_k", Type: "integer", Description: "Number of results to return"},
			},
		},
		{
			Name:        "get_earnings_documents",
			Description: "Get links to recent earnings documents (10-Q, 10-K, 8-K filings) from SEC EDGAR.",
			Params: []llm.ToolParam{
				{Name: "ticker", Type: "string", Description: "Stock ticker symbol", Required: true},
				{Name: "limit", Type: "integer", Description: "Max filings to return"},
			},
		},
	}
}

// Execute runs a tool and returns the result as a JSON string. Failures are
// encoded as {"error": ...} payloads so the model can recover.
func (t *ToolRegistry) Execute(ctx context.Context, name string, args map[string]interface{}) string {
	result, err := t.execute(ctx, name, args)
	if err != nil {
		t.log.Warn().Err(err).Str("tool", name).Msg("Tool execution failed")
		return toolJSON(map[string]string{"error": err.Error()})
	}
	return result
}

func (t *ToolRegistry) execute(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	switch name {
	case "search_stocks":
		response, err := t.stocks.Search(ctx, stringArg(args, "query"), intArg(args, "limit", 5))
		if err != nil {
			return "", err
		}
		return toolJSON(response.Results), nil

	case "get_stock_info":
		info, err := t.stocks.GetStockInfo(ctx, tickerArg(args))
		if err != nil {
			return "", err
		}
		return toolJSON(info), nil

	case "get_fundamentals":
		data, err := t.stocks.GetFundamentals(ctx, tickerArg(args))
		if err != nil {
			return "", err
		}
		return toolJSON(data), nil

	case "get_stock_score":
		fundamentals, info, err := t.fetchScoringData(ctx, tickerArg(args))
		if err != nil {
			return "", err
		}
		result, err := t.engine.ScoreComposite(fundamentals, info, scoring.DefaultProfileName)
		if err != nil {
			return "", err
		}
		return toolJSON(result), nil

	case "get_factor_score":
		fundamentals, info, err := t.fetchScoringData(ctx, tickerArg(args))
		if err != nil {
			return "", err
		}
		configName := stringArg(args, "factor") + "_v1"
		result, err := t.engine.ScoreFactor(configName, fundamentals, info)
		if err != nil {
			return "", err
		}
		return toolJSON(result), nil

	case "list_portfolios":
		summaries, err := t.portfolios.List()
		if err != nil {
			return "", err
		}
		return toolJSON(summaries), nil

	case "get_portfolio":
		detail, err := t.portfolios.Get(ctx, int64(intArg(args, "portfolio_id", 0)))
		if err != nil {
			return "", err
		}
		if detail == nil {
			return toolJSON(map[string]string{"error": "Portfolio not found"}), nil
		}
		return toolJSON(detail), nil

	case "create_portfolio":
		var description *string
		if desc := stringArg(args, "description"); desc != "" {
			description = &desc
		}
		portfolio, err := t.portfolios.Create(stringArg(args, "name"), description)
		if err != nil {
			return "", err
		}
		return toolJSON(portfolio), nil

	case "add_holding":
		holding, err := t.portfolios.AddHolding(int64(intArg(args, "portfolio_id", 0)), portfolios.Holding{
			Ticker:    tickerArg(args),
			Shares:    floatArg(args, "shares"),
			CostBasis: floatArg(args, "cost_basis"),
		})
		if err != nil {
			return "", err
		}
		if holding == nil {
			return toolJSON(map[string]string{"error": "Portfolio not found"}), nil
		}
		return toolJSON(holding), nil

	case "remove_holding":
		deleted, err := t.portfolios.DeleteHolding(int64(intArg(args, "holding_id", 0)))
		if err != nil {
			return "", err
		}
		if !deleted {
			return toolJSON(map[string]string{"error": "Holding not found"}), nil
		}
		return toolJSON(map[string]interface{}{"success": true, "message": "Holding removed"}), nil

	case "search_earnings_transcripts":
		response, err := t.transcripts.Search(ctx, stringArg(args, "query"), strings.ToUpper(stringArg(args, "ticker")), intArg(args, "top_k", 5))
		if err != nil {
			return "", err
		}
		return toolJSON(response), nil

	case "get_earnings_documents":
		ticker := tickerArg(args)
		filings, err := t.filings.RecentFilings(ctx, ticker, nil, intArg(args, "limit", 5))
		if err != nil {
			return "", err
		}
		return toolJSON(map[string]interface{}{
			"ticker":      ticker,
			"sec_filings": filings,
		}), nil

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (t *ToolRegistry) fetchScoringData(ctx context.Context, ticker string) (map[string]interface{}, map[string]interface{}, error) {
	fundamentals, err := t.stocks.GetFundamentals(ctx, ticker)
	if err != nil {
		return nil, nil, err
	}
	info, err := t.stocks.GetStockInfo(ctx, ticker)
	if err != nil {
		return nil, nil, err
	}
	return fundamentals, info, nil
}

func toolJSON(data interface{}) string {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(payload)
}

func stringArg(args map[string]interface{}, name string) string {
	val, _ := args[name].(string)
	return val
}

func tickerArg(args map[string]interface{}) string {
	return strings.ToUpper(strings.TrimSpace(stringArg(args, "ticker")))
}

func intArg(args map[string]interface{}, name string, fallback int) int {
	switch val := args[name].(type) {
	case float64:
		return int(val)
	case int:
		return val
	}
	return fallback
}

func floatArg(args map[string]interface{}, name string) float64 {
	switch val := args[name].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return 0
}
