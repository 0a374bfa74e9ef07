package analyze

// AnalyzeRequest - POST /api/analyze request body. ImageBase64 accepts a
// full data URL or a bare base64 payload.
type AnalyzeRequest struct {
	ImageBase64 string `json:"imageBase64"`
}

// AnalyzeResult - garment summary for the wardrobe upload flow
type AnalyzeResult struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Error    string   `json:"error,omitempty"`
}

// PlaceholderResult - fallback when analysis fails; batch uploads must get a
// usable record for every item.
func PlaceholderResult() AnalyzeResult {
	return AnalyzeResult{Name: "Unknown Clothing", Category: "General", Tags: []string{}}
}
