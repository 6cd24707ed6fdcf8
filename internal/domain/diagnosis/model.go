package diagnosis

// Score is the raw match result for one condition. Overlap counts the
// reported symptoms present in the condition's symptom set; RedFlags counts
// how many of those are red-flag symptoms. Total combines overlap with the
// red-flag bonus, which grows faster than linearly so that clusters of red
// flags dominate broad but benign overlaps.
type Score struct {
	ConditionID string  `json:"condition_id"`
	Overlap     int     `json:"overlap"`
	RedFlags    int     `json:"red_flags"`
	Total       float64 `json:"total"`

	Matched        []string `json:"matched"`
	MatchedRedFlag []string `json:"matched_red_flags,omitempty"`
}

// Candidate is one ranked differential-diagnosis entry.
type Candidate struct {
	ConditionID string  `json:"condition_id"`
	Name        string  `json:"name"`
	Severity    string  `json:"severity"`
	Confidence  float64 `json:"confidence"`

	Score Score `json:"score"`

	// Missing lists the condition's documented symptoms absent from the
	// report, so a clinician can see what to ask about next.
	Missing []string `json:"missing_symptoms,omitempty"`

	// DifferentialOf names the highest-ranked candidate that the knowledge
	// base documents this one as a differential of. Empty otherwise.
	DifferentialOf string `json:"differential_of,omitempty"`

	TimeSensitive      bool `json:"time_sensitive"`
	TimeSensitiveHours int  `json:"time_sensitive_hours,omitempty"`
}

// MatchRequest is the body of POST /diagnosis/match.
type MatchRequest struct {
	Symptoms []string `json:"symptoms"`
}

// RankRequest is the body of POST /diagnosis/rank. Limit bounds the size of
// the differential; zero means the configured default.
type RankRequest struct {
	Symptoms []string `json:"symptoms"`
	Limit    int      `json:"limit,omitempty"`
}

// MatchResponse is the body returned by POST /diagnosis/match.
type MatchResponse struct {
	KBVersion string  `json:"kb_version"`
	Symptoms  []string `json:"symptoms"`
	Scores    []Score  `json:"scores"`
}

// RankResponse is the body returned by POST /diagnosis/rank.
type RankResponse struct {
	KBVersion  string      `json:"kb_version"`
	Symptoms   []string    `json:"symptoms"`
	Candidates []Candidate `json:"candidates"`
}
