package model

type IngestInput struct {
	FileName string
	Text     string
	// Raw is the original upload, archived by content hash when set.
	Raw []byte
}

type Duplicate struct {
	FileName    string `json:"file_name"`
	StoredName  string `json:"stored_name"`
	ContentHash string `json:"content_hash"`
}

type IngestFailure struct {
	FileName string `json:"file_name"`
	Reason   string `json:"reason"`
}

type IngestResult struct {
	Added        int             `json:"added"`
	Duplicates   []Duplicate     `json:"duplicates"`
	Accepted     []string        `json:"accepted"`
	Failed       []IngestFailure `json:"failed"`
	TotalEntries int             `json:"total_entries"`
}
