// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package gateway

import "github.com/mark3labs/mcp-go/mcp"

// ToolKind enumerates every tool the gateway exposes. Dispatch runs through
// one exhaustive switch per kind, so adding a tool is a compile-time-checked
// change rather than a runtime naming convention.
type ToolKind int

const (
	// Connection and session tools.
	ToolAddConnection ToolKind = iota
	ToolRemoveConnection
	ToolListConnections
	ToolSwitchConnection
	ToolConnect
	ToolSetDefaultConnection
	ToolCurrentConnection
	ToolLogout
	ToolTokenInfo
	ToolTokenStats
	ToolClearTokens

	// Data API passthrough tools.
	ToolListDatabases
	ToolListLayouts
	ToolListScripts
	ToolLayoutMetadata
	ToolGetRecords
	ToolGetRecord
	ToolCreateRecord
	ToolEditRecord
	ToolDeleteRecord
	ToolDuplicateRecord
	ToolFindRecords
	ToolRunScript
	ToolSetGlobals
	ToolProductInfo

	toolKindCount // sentinel, keep last
)

// Name returns the wire name of the tool.
func (k ToolKind) Name() string {
	return k.Definition().Name
}

// Definition returns the MCP tool schema for the kind.
func (k ToolKind) Definition() mcp.Tool {
	switch k {
	case ToolAddConnection:
		return mcp.NewTool("fm_add_connection",
			mcp.WithDescription("Store a named FileMaker connection profile."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Unique connection name")),
			mcp.WithString("server", mcp.Required(), mcp.Description("FileMaker Server host or IP")),
			mcp.WithString("database", mcp.Required(), mcp.Description("Database name")),
			mcp.WithString("user", mcp.Required(), mcp.Description("Account name")),
			mcp.WithString("password", mcp.Required(), mcp.Description("Account password")),
			mcp.WithString("version", mcp.Description("Data API version (default vLatest)")),
		)
	case ToolRemoveConnection:
		return mcp.NewTool("fm_remove_connection",
			mcp.WithDescription("Delete a named connection profile."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Connection name")),
		)
	case ToolListConnections:
		return mcp.NewTool("fm_list_connections",
			mcp.WithDescription("List stored connection profiles (passwords redacted)."),
		)
	case ToolSwitchConnection:
		return mcp.NewTool("fm_switch_connection",
			mcp.WithDescription("Make a named connection the active one."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Connection name")),
		)
	case ToolConnect:
		return mcp.NewTool("fm_connect",
			mcp.WithDescription("Activate an ad-hoc connection without storing it."),
			mcp.WithString("server", mcp.Required(), mcp.Description("FileMaker Server host or IP")),
			mcp.WithString("database", mcp.Required(), mcp.Description("Database name")),
			mcp.WithString("user", mcp.Required(), mcp.Description("Account name")),
			mcp.WithString("password", mcp.Required(), mcp.Description("Account password")),
			mcp.WithString("version", mcp.Description("Data API version (default vLatest)")),
		)
	case ToolSetDefaultConnection:
		return mcp.NewTool("fm_set_default_connection",
			mcp.WithDescription("Mark a named connection as the startup default."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Connection name")),
		)
	case ToolCurrentConnection:
		return mcp.NewTool("fm_current_connection",
			mcp.WithDescription("Show the active connection (password redacted)."),
		)
	case ToolLogout:
		return mcp.NewTool("fm_logout",
			mcp.WithDescription("Close the active connection's Data API session and drop its cached token."),
		)
	case ToolTokenInfo:
		return mcp.NewTool("fm_token_info",
			mcp.WithDescription("Show expiry metadata for the active connection's cached token. Never returns the token itself."),
		)
	case ToolTokenStats:
		return mcp.NewTool("fm_token_stats",
			mcp.WithDescription("Count cached session tokens by validity."),
		)
	case ToolClearTokens:
		return mcp.NewTool("fm_clear_tokens",
			mcp.WithDescription("Drop every cached session token and delete the cache file."),
		)
	case ToolListDatabases:
		return mcp.NewTool("fm_list_databases",
			mcp.WithDescription("List databases visible to the active connection's credentials."),
		)
	case ToolListLayouts:
		return mcp.NewTool("fm_list_layouts",
			mcp.WithDescription("List layouts in the active database."),
		)
	case ToolListScripts:
		return mcp.NewTool("fm_list_scripts",
			mcp.WithDescription("List scripts in the active database."),
		)
	case ToolLayoutMetadata:
		return mcp.NewTool("fm_layout_metadata",
			mcp.WithDescription("Describe a layout's fields and portals."),
			mcp.WithString("layout", mcp.Required(), mcp.Description("Layout name")),
		)
	case ToolGetRecords:
		return mcp.NewTool("fm_get_records",
			mcp.WithDescription("Fetch a page of records from a layout."),
			mcp.WithString("layout", mcp.Required(), mcp.Description("Layout name")),
			mcp.WithNumber("offset", mcp.Description("1-based starting record")),
			mcp.WithNumber("limit", mcp.Description("Maximum records to return")),
			mcp.WithString("sort_field", mcp.Description("Field to sort by")),
			mcp.WithString("sort_order", mcp.Description("ascend or descend")),
		)
	case ToolGetRecord:
		return mcp.NewTool("fm_get_record",
			mcp.WithDescription("Fetch one record by its internal record ID."),
			mcp.WithString("layout", mcp.Required(), mcp.Description("Layout name")),
			mcp.WithString("record_id", mcp.Required(), mcp.Description("Internal record ID")),
		)
	case ToolCreateRecord:
		return mcp.NewTool("fm_create_record",
			mcp.WithDescription("Create a record from a field-name/value map."),
			mcp.WithString("layout", mcp.Required(), mcp.Description("Layout name")),
			mcp.WithObject("field_data", mcp.Required(), mcp.Description("Field values keyed by field name")),
		)
	case ToolEditRecord:
		return mcp.NewTool("fm_edit_record",
			mcp.WithDescription("Update fields on an existing record."),
			mcp.WithString("layout", mcp.Required(), mcp.Description("Layout name")),
			mcp.WithString("record_id", mcp.Required(), mcp.Description("Internal record ID")),
			mcp.WithObject("field_data", mcp.Required(), mcp.Description("Field values keyed by field name")),
		)
	case ToolDeleteRecord:
		return mcp.NewTool("fm_delete_record",
			mcp.WithDescription("Delete a record by its internal record ID."),
			mcp.WithString("layout", mcp.Required(), mcp.Description("Layout name")),
			mcp.WithString("record_id", mcp.Required(), mcp.Description("Internal record ID")),
		)
	case ToolDuplicateRecord:
		return mcp.NewTool("fm_duplicate_record",
			mcp.WithDescription("Duplicate a record and return the new record ID."),
			mcp.WithString("layout", mcp.Required(), mcp.Description("Layout name")),
			mcp.WithString("record_id", mcp.Required(), mcp.Description("Internal record ID")),
		)
	case ToolFindRecords:
		return mcp.NewTool("fm_find_records",
			mcp.WithDescription("Run a FileMaker find. Each query entry is a field/criterion map; entries OR together."),
			mcp.WithString("layout", mcp.Required(), mcp.Description("Layout name")),
			mcp.WithArray("query", mcp.Required(), mcp.Description("Find requests, e.g. [{\"Name\": \"=Smith\"}]")),
			mcp.WithString("sort_field", mcp.Description("Field to sort by")),
			mcp.WithString("sort_order", mcp.Description("ascend or descend")),
			mcp.WithNumber("offset", mcp.Description("1-based starting record")),
			mcp.WithNumber("limit", mcp.Description("Maximum records to return")),
		)
	case ToolRunScript:
		return mcp.NewTool("fm_run_script",
			mcp.WithDescription("Run a script in the context of a layout."),
			mcp.WithString("layout", mcp.Required(), mcp.Description("Layout name")),
			mcp.WithString("script", mcp.Required(), mcp.Description("Script name")),
			mcp.WithString("param", mcp.Description("Script parameter")),
		)
	case ToolSetGlobals:
		return mcp.NewTool("fm_set_globals",
			mcp.WithDescription("Set global field values for the session. Keys are fully qualified (table::field)."),
			mcp.WithObject("globals", mcp.Required(), mcp.Description("Global field values")),
		)
	case ToolProductInfo:
		return mcp.NewTool("fm_product_info",
			mcp.WithDescription("Show FileMaker Server product metadata."),
		)
	default:
		// Unreachable for declared kinds; Register never passes others.
		return mcp.NewTool("fm_unknown")
	}
}
