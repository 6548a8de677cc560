package analyze

// analyzeRequest is the browser upload payload. Mode "full" runs the scored
// critique pipeline; a body carrying prompt+imageBase64 with no mode is
// relayed to the model as-is.
type analyzeRequest struct {
	Mode        string `json:"mode"`
	Prompt      string `json:"prompt"`
	ImageBase64 string `json:"imageBase64"`
	RequestID   string `json:"requestId"`
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	Timestamp   string `json:"timestamp"`
	Consent     bool   `json:"consent"`
	Diagnostics bool   `json:"diagnostics"`
	ClientID    string `json:"clientId"`
	VisitorID   string `json:"visitorId"`
	IP          string `json:"ip"`
	UA          string `json:"ua"`
	Lang        string `json:"lang"`
	Referrer    string `json:"referrer"`
}

// ingestRequest is the standalone record-ingestion payload. Consent arrives
// in whatever shape the client sent (boolean, "Y", "true", 1) and is
// normalised before forwarding; the image may arrive under either key.
type ingestRequest struct {
	Action      string      `json:"action"`
	RequestID   string      `json:"requestId"`
	Name        string      `json:"name"`
	Contact     string      `json:"contact"`
	Timestamp   string      `json:"timestamp"`
	Image       string      `json:"image"`
	ImageBase64 string      `json:"imageBase64"`
	Consent     interface{} `json:"consent"`
	ClientID    string      `json:"clientId"`
	VisitorID   string      `json:"visitorId"`
	IP          string      `json:"ip"`
	UA          string      `json:"ua"`
	Lang        string      `json:"lang"`
	Referrer    string      `json:"referrer"`
}
