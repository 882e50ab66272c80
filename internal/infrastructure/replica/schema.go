package replica

import (
	"github.com/hashicorp/go-memdb"

	"github.com/fieldops/job-tracker/internal/core/domain"
)

const (
	jobsTable      = "jobs"
	locationsTable = "locations"
	usersTable     = "users"

	idIndex  = "id"  // primary key lookup
	seqIndex = "seq" // creation-order iteration
)

// jobRecord wraps a job with the monotonic sequence assigned at first
// insert. The sequence survives updates so creation order is stable.
type jobRecord struct {
	ID  string
	Seq int64
	Job *domain.Job
}

type locationRecord struct {
	ID       string
	Seq      int64
	Location *domain.Location
}

type userRecord struct {
	ID   string
	User *domain.UserProfile
}

// storeSchema creates the replica schema: one table per entity, a unique id
// index each, and a sequence index where iteration order matters.
func storeSchema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			jobsTable: {
				Name: jobsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					seqIndex: {
						Name:    seqIndex,
						Unique:  true,
						Indexer: &memdb.IntFieldIndex{Field: "Seq"},
					},
				},
			},
			locationsTable: {
				Name: locationsTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					seqIndex: {
						Name:    seqIndex,
						Unique:  true,
						Indexer: &memdb.IntFieldIndex{Field: "Seq"},
					},
				},
			},
			usersTable: {
				Name: usersTable,
				Indexes: map[string]*memdb.IndexSchema{
					idIndex: {
						Name:    idIndex,
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}
}
