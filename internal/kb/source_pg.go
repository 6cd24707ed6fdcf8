package kb

import (
	"context"
	"fmt"

	"github.com/medichain/reasoner/internal/platform/db"
)

// pgSource reads the kb_fact triples table:
//
//	CREATE TABLE kb_fact (
//	    subject  TEXT NOT NULL,
//	    relation TEXT NOT NULL,
//	    object   TEXT NOT NULL,
//	    severity TEXT NOT NULL DEFAULT '',
//	    note     TEXT NOT NULL DEFAULT '',
//	    PRIMARY KEY (subject, relation, object)
//	);
//
// The ORDER BY keeps load order deterministic so repeated loads of the same
// table produce identical snapshots.
type pgSource struct {
	dsn string
}

func (s *pgSource) Descriptor() string { return "postgres" }

func (s *pgSource) Facts(ctx context.Context) ([]Fact, error) {
	pool, err := db.NewPool(ctx, s.dsn, 4, 1)
	if err != nil {
		return nil, &LoadError{Source: s.Descriptor(), Reason: fmt.Sprintf("connect: %v", err)}
	}
	defer pool.Close()

	rows, err := pool.Query(ctx, `
		SELECT subject, relation, object, severity, note
		FROM kb_fact
		ORDER BY subject, relation, object`)
	if err != nil {
		return nil, &LoadError{Source: s.Descriptor(), Reason: fmt.Sprintf("query kb_fact: %v", err)}
	}
	defer rows.Close()

	var facts []Fact
	for rows.Next() {
		var f Fact
		if err := rows.Scan(&f.Subject, &f.Relation, &f.Object, &f.Severity, &f.Note); err != nil {
			return nil, &LoadError{Source: s.Descriptor(), Reason: fmt.Sprintf("scan kb_fact: %v", err)}
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, &LoadError{Source: s.Descriptor(), Reason: fmt.Sprintf("read kb_fact: %v", err)}
	}
	if len(facts) == 0 {
		return nil, &LoadError{Source: s.Descriptor(), Reason: "kb_fact table is empty"}
	}
	return facts, nil
}
