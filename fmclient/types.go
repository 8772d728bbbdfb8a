// Copyright 2025 fsans
// SPDX-License-Identifier: Apache-2.0

package fmclient

import "encoding/json"

// envelope is the Data API response wrapper common to every endpoint.
type envelope struct {
	Messages []Message       `json:"messages"`
	Response json.RawMessage `json:"response"`
}

// Message is one status entry in a Data API response. Code "0" is success.
type Message struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Record is one FileMaker record as returned by the Data API.
type Record struct {
	FieldData  map[string]any              `json:"fieldData"`
	PortalData map[string][]map[string]any `json:"portalData,omitempty"`
	RecordID   string                      `json:"recordId"`
	ModID      string                      `json:"modId"`
}

// DataInfo describes the result set of a records or find call.
type DataInfo struct {
	Database         string `json:"database"`
	Layout           string `json:"layout"`
	Table            string `json:"table"`
	TotalRecordCount int64  `json:"totalRecordCount"`
	FoundCount       int64  `json:"foundCount"`
	ReturnedCount    int64  `json:"returnedCount"`
}

// RecordSet is the payload of GetRecords, GetRecord and Find.
type RecordSet struct {
	DataInfo DataInfo `json:"dataInfo"`
	Data     []Record `json:"data"`
}

// ListOptions narrows a GetRecords call. Zero values are omitted from the
// request.
type ListOptions struct {
	Offset    int
	Limit     int
	SortField string
	SortOrder string // "ascend" or "descend"
}

// FindRequest is the body of a _find call.
type FindRequest struct {
	Query  []map[string]string `json:"query"`
	Sort   []SortSpec          `json:"sort,omitempty"`
	Offset string              `json:"offset,omitempty"`
	Limit  string              `json:"limit,omitempty"`
}

// SortSpec orders find results by one field.
type SortSpec struct {
	FieldName string `json:"fieldName"`
	SortOrder string `json:"sortOrder,omitempty"`
}

// ScriptResult is the outcome of a script execution.
type ScriptResult struct {
	ScriptError  string `json:"scriptError"`
	ScriptResult string `json:"scriptResult,omitempty"`
}

// LayoutName is one entry in a layout listing; folders nest.
type LayoutName struct {
	Name     string       `json:"name"`
	IsFolder bool         `json:"isFolder,omitempty"`
	Layouts  []LayoutName `json:"folderLayoutNames,omitempty"`
}

// ScriptName is one entry in a script listing; folders nest.
type ScriptName struct {
	Name     string       `json:"name"`
	IsFolder bool         `json:"isFolder,omitempty"`
	Scripts  []ScriptName `json:"folderScriptNames,omitempty"`
}

// FieldMetadata describes one layout field.
type FieldMetadata struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DisplayType string `json:"displayType"`
	Result      string `json:"result"`
	Global      bool   `json:"global"`
	MaxRepeat   int    `json:"maxRepeat"`
	NotEmpty    bool   `json:"notEmpty"`
}

// LayoutMetadata is the field and portal structure of a layout.
type LayoutMetadata struct {
	FieldMetaData  []FieldMetadata            `json:"fieldMetaData"`
	PortalMetaData map[string][]FieldMetadata `json:"portalMetaData,omitempty"`
	ValueLists     json.RawMessage            `json:"valueLists,omitempty"`
}

// ProductInfo describes the FileMaker Server behind the gateway.
type ProductInfo struct {
	Name            string `json:"name"`
	BuildDate       string `json:"buildDate"`
	Version         string `json:"version"`
	DateFormat      string `json:"dateFormat"`
	TimeFormat      string `json:"timeFormat"`
	TimeStampFormat string `json:"timeStampFormat"`
}
