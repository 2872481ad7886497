package domain

import "errors"

var (
	ErrAppNotFound = errors.New("app not found")
	ErrAppLimit    = errors.New("app limit reached for tier")
)

// DataSource is an uploaded dataset listed on the dashboard.
type DataSource struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Rows       int      `json:"rows"`
	Columns    int      `json:"columns"`
	UploadDate string   `json:"upload_date"`
	Schema     []string `json:"schema"`
}

// ChartApp is a saved chart built from a data source.
type ChartApp struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	DataSource string `json:"data_source"`
	LastEdited string `json:"last_edited"`
	ChartType  string `json:"chart_type"`
	IsPublic   bool   `json:"is_public"`
}
