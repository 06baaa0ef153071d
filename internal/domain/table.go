package domain

// Canonical output columns, in order.
var TableColumns = []string{"snapDate", "newsId", "relatedProduct", "stockDesc", "newsSummary", "status"}

// TableRow is one projected output row.
type TableRow struct {
	SnapDate       string    `json:"snapDate"`
	NewsID         string    `json:"newsId"`
	RelatedProduct string    `json:"relatedProduct"`
	StockDesc      string    `json:"stockDesc"`
	NewsSummary    string    `json:"newsSummary"`
	Status         RowStatus `json:"status"`
}

// Values returns the row's cells in TableColumns order.
func (r TableRow) Values() []string {
	return []string{r.SnapDate, r.NewsID, r.RelatedProduct, r.StockDesc, r.NewsSummary, string(r.Status)}
}

// Table is the ordered output of one batch.
type Table struct {
	Columns []string   `json:"columns"`
	Rows    []TableRow `json:"rows"`
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}
