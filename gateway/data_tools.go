// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/connections"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/fmclient"
	"github.com/fsans/FileMaker-Server-DAPI-MCP-sub000/session"
)

func (g *Gateway) handleListDatabases(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// The databases endpoint authenticates with Basic credentials, not a
	// session token, so it bypasses the retry wrapper.
	profile, err := g.manager.CurrentProfile()
	if err != nil {
		return nil, err
	}

	names, err := g.client.ListDatabases(ctx, profile)
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{"databases": names})
}

func (g *Gateway) handleProductInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profile, err := g.manager.CurrentProfile()
	if err != nil {
		return nil, err
	}

	info, err := g.client.ProductInfo(ctx, profile)
	if err != nil {
		return nil, err
	}
	return jsonResult(info)
}

func (g *Gateway) handleListLayouts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layouts, err := session.RunWithAuthRetry(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) ([]fmclient.LayoutName, error) {
			return g.client.ListLayouts(ctx, p, token)
		})
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{"layouts": layouts})
}

func (g *Gateway) handleListScripts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scripts, err := session.RunWithAuthRetry(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) ([]fmclient.ScriptName, error) {
			return g.client.ListScripts(ctx, p, token)
		})
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]any{"scripts": scripts})
}

func (g *Gateway) handleLayoutMetadata(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layout, err := req.RequireString("layout")
	if err != nil {
		return nil, err
	}

	meta, err := session.RunWithAuthRetry(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) (*fmclient.LayoutMetadata, error) {
			return g.client.LayoutMetadata(ctx, p, token, layout)
		})
	if err != nil {
		return nil, err
	}
	return jsonResult(meta)
}

func (g *Gateway) handleGetRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layout, err := req.RequireString("layout")
	if err != nil {
		return nil, err
	}
	opts := fmclient.ListOptions{
		Offset:    req.GetInt("offset", 0),
		Limit:     req.GetInt("limit", 0),
		SortField: req.GetString("sort_field", ""),
		SortOrder: req.GetString("sort_order", ""),
	}

	set, err := session.RunWithAuthRetry(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) (*fmclient.RecordSet, error) {
			return g.client.GetRecords(ctx, p, token, layout, opts)
		})
	if err != nil {
		return nil, err
	}
	return jsonResult(set)
}

func (g *Gateway) handleGetRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layout, err := req.RequireString("layout")
	if err != nil {
		return nil, err
	}
	recordID, err := req.RequireString("record_id")
	if err != nil {
		return nil, err
	}

	set, err := session.RunWithAuthRetry(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) (*fmclient.RecordSet, error) {
			return g.client.GetRecord(ctx, p, token, layout, recordID)
		})
	if err != nil {
		return nil, err
	}
	return jsonResult(set)
}

func (g *Gateway) handleCreateRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layout, err := req.RequireString("layout")
	if err != nil {
		return nil, err
	}
	fieldData, err := objectArg(req, "field_data")
	if err != nil {
		return nil, err
	}

	recordID, err := session.RunWithAuthRetry(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) (string, error) {
			return g.client.CreateRecord(ctx, p, token, layout, fieldData)
		})
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]string{"recordId": recordID})
}

func (g *Gateway) handleEditRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layout, err := req.RequireString("layout")
	if err != nil {
		return nil, err
	}
	recordID, err := req.RequireString("record_id")
	if err != nil {
		return nil, err
	}
	fieldData, err := objectArg(req, "field_data")
	if err != nil {
		return nil, err
	}

	modID, err := session.RunWithAuthRetry(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) (string, error) {
			return g.client.EditRecord(ctx, p, token, layout, recordID, fieldData)
		})
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]string{"recordId": recordID, "modId": modID})
}

func (g *Gateway) handleDeleteRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layout, err := req.RequireString("layout")
	if err != nil {
		return nil, err
	}
	recordID, err := req.RequireString("record_id")
	if err != nil {
		return nil, err
	}

	err = session.RunWithAuthRetryVoid(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) error {
			return g.client.DeleteRecord(ctx, p, token, layout, recordID)
		})
	if err != nil {
		return nil, err
	}
	return textResult("Record %s deleted.", recordID), nil
}

func (g *Gateway) handleDuplicateRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layout, err := req.RequireString("layout")
	if err != nil {
		return nil, err
	}
	recordID, err := req.RequireString("record_id")
	if err != nil {
		return nil, err
	}

	newID, err := session.RunWithAuthRetry(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) (string, error) {
			return g.client.DuplicateRecord(ctx, p, token, layout, recordID)
		})
	if err != nil {
		return nil, err
	}
	return jsonResult(map[string]string{"recordId": newID})
}

func (g *Gateway) handleFindRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layout, err := req.RequireString("layout")
	if err != nil {
		return nil, err
	}
	query, err := findQueryArg(req)
	if err != nil {
		return nil, err
	}

	find := fmclient.FindRequest{Query: query}
	if field := req.GetString("sort_field", ""); field != "" {
		find.Sort = []fmclient.SortSpec{{FieldName: field, SortOrder: req.GetString("sort_order", "ascend")}}
	}
	if offset := req.GetInt("offset", 0); offset > 0 {
		find.Offset = strconv.Itoa(offset)
	}
	if limit := req.GetInt("limit", 0); limit > 0 {
		find.Limit = strconv.Itoa(limit)
	}

	set, err := session.RunWithAuthRetry(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) (*fmclient.RecordSet, error) {
			return g.client.Find(ctx, p, token, layout, find)
		})
	if err != nil {
		return nil, err
	}
	return jsonResult(set)
}

func (g *Gateway) handleRunScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	layout, err := req.RequireString("layout")
	if err != nil {
		return nil, err
	}
	script, err := req.RequireString("script")
	if err != nil {
		return nil, err
	}
	param := req.GetString("param", "")

	result, err := session.RunWithAuthRetry(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) (*fmclient.ScriptResult, error) {
			return g.client.RunScript(ctx, p, token, layout, script, param)
		})
	if err != nil {
		return nil, err
	}
	return jsonResult(result)
}

func (g *Gateway) handleSetGlobals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := objectArg(req, "globals")
	if err != nil {
		return nil, err
	}

	globals := make(map[string]string, len(raw))
	for key, value := range raw {
		globals[key] = fmt.Sprintf("%v", value)
	}

	err = session.RunWithAuthRetryVoid(ctx, g.manager,
		func(ctx context.Context, p connections.Profile, token string) error {
			return g.client.SetGlobals(ctx, p, token, globals)
		})
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText("Globals set."), nil
}

// objectArg extracts a required object argument as a map.
func objectArg(req mcp.CallToolRequest, key string) (map[string]any, error) {
	value, ok := req.GetArguments()[key]
	if !ok {
		return nil, fmt.Errorf("required argument %q not found", key)
	}
	object, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an object", key)
	}
	return object, nil
}

// findQueryArg extracts the find query: an array of field/criterion maps.
func findQueryArg(req mcp.CallToolRequest) ([]map[string]string, error) {
	value, ok := req.GetArguments()["query"]
	if !ok {
		return nil, fmt.Errorf("required argument %q not found", "query")
	}
	entries, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("argument %q must be an array of objects", "query")
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("argument %q must not be empty", "query")
	}

	query := make([]map[string]string, 0, len(entries))
	for i, entry := range entries {
		object, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("query entry %d must be an object", i)
		}
		criteria := make(map[string]string, len(object))
		for field, criterion := range object {
			criteria[field] = fmt.Sprintf("%v", criterion)
		}
		query = append(query, criteria)
	}
	return query, nil
}
