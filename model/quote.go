package model

import (
	"strings"
)

// LanguagePair is an ordered (source, target) pair of canonical language keys.
type LanguagePair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func (p LanguagePair) String() string {
	return p.Source + "->" + p.Target
}

// Subject is the subject-matter category of a document.
type Subject string

const (
	SubjectGeneral   Subject = "general"
	SubjectTechnical Subject = "technical"
	SubjectMarketing Subject = "marketing"
	SubjectLegal     Subject = "legal"
	SubjectMedical   Subject = "medical"
)

// Turnaround is the delivery tier.
type Turnaround string

const (
	TurnaroundStandard        Turnaround = "standard"
	TurnaroundTwoBusinessDays Turnaround = "2bd"
	TurnaroundTwentyFourHours Turnaround = "h24"
)

var subjects = map[string]Subject{
	"":          SubjectGeneral,
	"general":   SubjectGeneral,
	"technical": SubjectTechnical,
	"marketing": SubjectMarketing,
	"legal":     SubjectLegal,
	"medical":   SubjectMedical,
}

// the order form historically posted several spellings for the same tier
var turnarounds = map[string]Turnaround{
	"":                  TurnaroundStandard,
	"standard":          TurnaroundStandard,
	"2bd":               TurnaroundTwoBusinessDays,
	"twobusinessdays":   TurnaroundTwoBusinessDays,
	"two_business_days": TurnaroundTwoBusinessDays,
	"rush":              TurnaroundTwoBusinessDays,
	"h24":               TurnaroundTwentyFourHours,
	"24h":               TurnaroundTwentyFourHours,
	"twentyfourhours":   TurnaroundTwentyFourHours,
	"twenty_four_hours": TurnaroundTwentyFourHours,
	"urgent":            TurnaroundTwentyFourHours,
}

// ParseSubject resolves a client supplied category. Empty means general.
func ParseSubject(s string) (Subject, bool) {
	v, ok := subjects[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// ParseTurnaround resolves a client supplied tier, accepting legacy aliases.
func ParseTurnaround(s string) (Turnaround, bool) {
	v, ok := turnarounds[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// QuoteOptions are the customer-chosen surcharge options.
type QuoteOptions struct {
	Subject    Subject    `json:"subject"`
	Turnaround Turnaround `json:"turnaround"`
	Certified  bool       `json:"certified"`
}

// Normalize returns a copy with canonical subject and turnaround values.
func (o QuoteOptions) Normalize() (QuoteOptions, error) {
	verr := &ValidationError{}
	subject, ok := ParseSubject(string(o.Subject))
	if !ok {
		verr.Add("options.subject", "unknown subject category "+string(o.Subject))
	}
	turnaround, ok := ParseTurnaround(string(o.Turnaround))
	if !ok {
		verr.Add("options.turnaround", "unknown turnaround tier "+string(o.Turnaround))
	}
	if err := verr.Err(); err != nil {
		return QuoteOptions{}, err
	}
	return QuoteOptions{Subject: subject, Turnaround: turnaround, Certified: o.Certified}, nil
}

// UploadedDocument references a file in object storage. ExtractedWordCount is
// reported back after upload for display only; quoting reads the count stored
// with the object, never the one a client sends.
type UploadedDocument struct {
	DisplayName        string `json:"display_name"`
	StorageReference   string `json:"storage_reference"`
	ExtractedWordCount *int   `json:"extracted_word_count,omitempty"`
}

// QuoteStatus distinguishes a priced quote from the variants that cannot be priced.
type QuoteStatus string

const (
	QuoteStatusPriced     QuoteStatus = "priced"
	QuoteStatusScanned    QuoteStatus = "scanned"
	QuoteStatusIncomplete QuoteStatus = "incomplete"
)

// QuoteLine is the priced amount for one language pair.
type QuoteLine struct {
	Pair        LanguagePair `json:"pair"`
	AmountCents int64        `json:"amount_cents"`
}

// FileResult is the outcome of analyzing one document.
type FileResult struct {
	DisplayName      string `json:"display_name"`
	StorageReference string `json:"storage_reference"`
	Words            int    `json:"words"`
	Scanned          bool   `json:"scanned,omitempty"`
	Cached           bool   `json:"cached,omitempty"`
	Error            string `json:"error,omitempty"`

	Err error `json:"-"`
}

// Failed reports whether the file could not be analyzed.
func (r FileResult) Failed() bool { return r.Err != nil }

// Quote is the priced snapshot shown to the client before payment.
type Quote struct {
	Status      QuoteStatus    `json:"status"`
	TotalWords  int            `json:"total_words"`
	Pairs       []LanguagePair `json:"pairs"`
	Options     QuoteOptions   `json:"options"`
	AmountCents int64          `json:"amount_cents"`
	Currency    string         `json:"currency"`
	Lines       []QuoteLine    `json:"lines,omitempty"`
	Files       []FileResult   `json:"files"`
}

// FailedFiles lists the files whose analysis failed.
func (q *Quote) FailedFiles() []FileResult {
	var out []FileResult
	for _, f := range q.Files {
		if f.Failed() {
			out = append(out, f)
		}
	}
	return out
}
