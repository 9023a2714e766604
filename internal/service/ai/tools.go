package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"github.com/cloudwego/eino-ext/components/tool/googlesearch"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	json "github.com/goccy/go-json"
)

// SearchOptions configures the web_search tool.
type SearchOptions struct {
	Lang           string
	MaxResults     int
	Timeout        time.Duration
	GoogleAPIKey   string
	GoogleEngineID string
}

// SearchOptionsFromEnv reads the Google credentials; DuckDuckGo needs none.
func SearchOptionsFromEnv() SearchOptions {
	return SearchOptions{
		Lang:           "es",
		MaxResults:     3,
		Timeout:        10 * time.Second,
		GoogleAPIKey:   os.Getenv("GOOGLE_API_KEY"),
		GoogleEngineID: os.Getenv("GOOGLE_SEARCH_ENGINE_ID"),
	}
}

type searchProvider struct {
	name string
	tool tool.InvokableTool
}

// searchChain asks each provider in order and returns the first answer.
type searchChain struct {
	providers []searchProvider
}

type searchParams struct {
	Query string `json:"query"`
}

// NewWebSearchTool returns nil when no provider could be built.
func NewWebSearchTool(ctx context.Context, opts SearchOptions) tool.InvokableTool {
	var chain searchChain
	if g := newGoogleSearch(ctx, opts); g != nil {
		chain.providers = append(chain.providers, searchProvider{"google", g})
	}
	if d := newDuckDuckGoSearch(ctx, opts); d != nil {
		chain.providers = append(chain.providers, searchProvider{"duckduckgo", d})
	}
	if len(chain.providers) == 0 {
		log.Printf("web search tool disabled: no search providers available")
		return nil
	}
	info := &schema.ToolInfo{
		Name: "web_search",
		Desc: "Busca en la web información actual que no esté en la conversación ni en lo que sabes del usuario.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Desc:     "Consulta en lenguaje natural",
				Type:     schema.String,
				Required: true,
			},
		}),
	}
	return utils.NewTool(info, chain.search)
}

func (c *searchChain) search(ctx context.Context, params *searchParams) (string, error) {
	if params == nil || strings.TrimSpace(params.Query) == "" {
		return "", errors.New("query must not be empty")
	}
	payload, err := json.Marshal(searchParams{Query: strings.TrimSpace(params.Query)})
	if err != nil {
		return "", fmt.Errorf("marshal search params: %w", err)
	}

	var errs []error
	for _, p := range c.providers {
		result, err := p.tool.InvokableRun(ctx, string(payload))
		if err == nil {
			return result, nil
		}
		log.Printf("%s search failed: %v", p.name, err)
		errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
	}
	return "", fmt.Errorf("no search provider succeeded: %w", errors.Join(errs...))
}

func newDuckDuckGoSearch(ctx context.Context, opts SearchOptions) tool.InvokableTool {
	t, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "web_search_ddg",
		MaxResults: opts.MaxResults,
		Region:     duckduckgo.RegionWT,
		Timeout:    opts.Timeout,
	})
	if err != nil {
		log.Printf("duckduckgo search tool disabled: %v", err)
		return nil
	}
	return t
}

func newGoogleSearch(ctx context.Context, opts SearchOptions) tool.InvokableTool {
	if opts.GoogleAPIKey == "" || opts.GoogleEngineID == "" {
		return nil
	}
	t, err := googlesearch.NewTool(ctx, &googlesearch.Config{
		ToolName:       "web_search_google",
		APIKey:         opts.GoogleAPIKey,
		SearchEngineID: opts.GoogleEngineID,
		Lang:           opts.Lang,
		Num:            opts.MaxResults,
	})
	if err != nil {
		log.Printf("google search tool disabled: %v", err)
		return nil
	}
	return t
}
