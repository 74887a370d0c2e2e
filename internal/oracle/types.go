package oracle

// Status is a link-content classification from the closed label set.
type Status string

const (
	StatusOK                 Status = "OK"
	StatusNotFound           Status = "NotFound"
	StatusPermanentRedirect  Status = "PermanentRedirect"
	StatusServiceUnavailable Status = "ServiceUnavailable"
	StatusTimeout            Status = "Timeout"
	StatusContentShift       Status = "ContentShift"
	StatusPaywall            Status = "Paywall"
	StatusDomainForSale      Status = "DomainForSale"
	StatusParkedDomain       Status = "ParkedDomain"
	StatusUnknownError       Status = "UnknownError"
)

// statusLabels is the closed set accepted from the oracle.
var statusLabels = []string{
	string(StatusOK),
	string(StatusNotFound),
	string(StatusPermanentRedirect),
	string(StatusServiceUnavailable),
	string(StatusTimeout),
	string(StatusContentShift),
	string(StatusPaywall),
	string(StatusDomainForSale),
	string(StatusParkedDomain),
	string(StatusUnknownError),
}

// Valid reports whether s is a member of the closed label set.
func (s Status) Valid() bool {
	for _, label := range statusLabels {
		if string(s) == label {
			return true
		}
	}
	return false
}

// LinkTarget is one bookmark submitted for health classification.
type LinkTarget struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// LinkVerdict is the oracle's classification for one target.
type LinkVerdict struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	NewURL string `json:"newUrl,omitempty"` // set when Status is PermanentRedirect
}

// CategorizeItem is one bookmark submitted for categorization.
type CategorizeItem struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CategoryAssignment is one proposed folder with its member bookmarks.
type CategoryAssignment struct {
	FolderName  string   `json:"folderName"`
	BookmarkIDs []string `json:"bookmarkIds"`
}

// apiRequest represents the Anthropic API request body.
type apiRequest struct {
	Model        string        `json:"model"`
	MaxTokens    int           `json:"max_tokens"`
	Messages     []apiMessage  `json:"messages"`
	OutputFormat *outputFormat `json:"output_format,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type outputFormat struct {
	Type   string     `json:"type"`
	Schema jsonSchema `json:"schema"`
}

type jsonSchema struct {
	Type                 string                `json:"type"`
	Properties           map[string]jsonSchema `json:"properties,omitempty"`
	Items                *jsonSchema           `json:"items,omitempty"`
	Enum                 []string              `json:"enum,omitempty"`
	Required             []string              `json:"required,omitempty"`
	AdditionalProperties *bool                 `json:"additionalProperties,omitempty"`
}

// apiResponse represents the Anthropic API response body.
type apiResponse struct {
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
