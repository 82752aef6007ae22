package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"qwery/internal/ai"
	"qwery/internal/datasource"
	"qwery/internal/model"
)

const (
	ToolListDatasources = "listDatasources"
	ToolGetSchema       = "getSchema"
	ToolRunQuery        = "runQuery"
	ToolViewSheet       = "viewSheet"

	maxToolOutput = 16 << 10
)

type QueryExecutor interface {
	Query(ctx context.Context, ds *model.Datasource, query string, limit int) (*datasource.Result, error)
	Preview(ctx context.Context, ds *model.Datasource, table string, limit int) (*datasource.Result, error)
	Schema(ctx context.Context, ds *model.Datasource) ([]datasource.Table, error)
}

type toolFunc func(ctx context.Context, a *Agent, args json.RawMessage) (any, error)

type tool struct {
	spec ai.ToolSpec
	run  toolFunc
}

type toolArgs struct {
	DatasourceID string `json:"datasourceId"`
	Query        string `json:"query"`
	SheetName    string `json:"sheetName"`
	Limit        int    `json:"limit"`
}

func datasourceParam() map[string]any {
	return map[string]any{"type": "string", "description": "Datasource id or name as returned by listDatasources"}
}

func newToolset(exec QueryExecutor, rowLimit int) map[string]tool {
	lookup := func(a *Agent, args toolArgs) (*model.Datasource, error) {
		if args.DatasourceID == "" {
			if len(a.Datasources) == 1 {
				return &a.Datasources[0], nil
			}
			return nil, fmt.Errorf("datasourceId is required")
		}
		ds, ok := a.datasource(args.DatasourceID)
		if !ok {
			return nil, fmt.Errorf("datasource %q is not attached to this conversation", args.DatasourceID)
		}
		return ds, nil
	}

	return map[string]tool{
		ToolListDatasources: {
			spec: ai.ToolSpec{
				Name:        ToolListDatasources,
				Description: "List the datasources available in this conversation.",
				Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
			},
			run: func(_ context.Context, a *Agent, _ json.RawMessage) (any, error) {
				out := make([]map[string]string, 0, len(a.Datasources))
				for _, ds := range a.Datasources {
					out = append(out, map[string]string{
						"id":          ds.ID,
						"name":        ds.Name,
						"provider":    ds.Provider,
						"description": ds.Description,
					})
				}
				return out, nil
			},
		},
		ToolGetSchema: {
			spec: ai.ToolSpec{
				Name:        ToolGetSchema,
				Description: "Return the tables and columns of a datasource.",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"datasourceId": datasourceParam()},
					"required":   []string{"datasourceId"},
				},
			},
			run: func(ctx context.Context, a *Agent, raw json.RawMessage) (any, error) {
				args, err := decodeArgs(raw)
				if err != nil {
					return nil, err
				}
				ds, err := lookup(a, args)
				if err != nil {
					return nil, err
				}
				return exec.Schema(ctx, ds)
			},
		},
		ToolRunQuery: {
			spec: ai.ToolSpec{
				Name:        ToolRunQuery,
				Description: "Run a read-only SQL query against a datasource and return the rows.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"datasourceId": datasourceParam(),
						"query":        map[string]any{"type": "string", "description": "SQL in the datasource's dialect"},
					},
					"required": []string{"datasourceId", "query"},
				},
			},
			run: func(ctx context.Context, a *Agent, raw json.RawMessage) (any, error) {
				args, err := decodeArgs(raw)
				if err != nil {
					return nil, err
				}
				if args.Query == "" {
					return nil, fmt.Errorf("query is required")
				}
				ds, err := lookup(a, args)
				if err != nil {
					return nil, err
				}
				return exec.Query(ctx, ds, args.Query, rowLimit)
			},
		},
		ToolViewSheet: {
			spec: ai.ToolSpec{
				Name:        ToolViewSheet,
				Description: "Show the first rows of a table (sheet) in a datasource.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"datasourceId": datasourceParam(),
						"sheetName":    map[string]any{"type": "string", "description": "Table name"},
						"limit":        map[string]any{"type": "integer", "description": "Maximum rows, default 50"},
					},
					"required": []string{"datasourceId", "sheetName"},
				},
			},
			run: func(ctx context.Context, a *Agent, raw json.RawMessage) (any, error) {
				args, err := decodeArgs(raw)
				if err != nil {
					return nil, err
				}
				ds, err := lookup(a, args)
				if err != nil {
					return nil, err
				}
				limit := args.Limit
				if limit <= 0 {
					limit = 50
				}
				return exec.Preview(ctx, ds, args.SheetName, limit)
			},
		},
	}
}

func decodeArgs(raw json.RawMessage) (toolArgs, error) {
	var args toolArgs
	if len(raw) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, fmt.Errorf("invalid tool arguments: %w", err)
	}
	return args, nil
}

func toolSpecs(tools map[string]tool) []ai.ToolSpec {
	specs := make([]ai.ToolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, t.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// encodeToolOutput renders a tool result for the model. Errors become
// {"error": ...} so the model can recover.
func encodeToolOutput(result any, err error) string {
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(payload)
	}
	payload, mErr := json.Marshal(result)
	if mErr != nil {
		payload, _ = json.Marshal(map[string]string{"error": mErr.Error()})
	}
	if len(payload) > maxToolOutput {
		payload, _ = json.Marshal(map[string]any{
			"truncated": true,
			"preview":   string(payload[:maxToolOutput]),
		})
	}
	return string(payload)
}
