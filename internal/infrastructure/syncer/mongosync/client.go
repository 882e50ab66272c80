// Package mongosync implements the sync collaborator against a MongoDB
// replica set: bootstrap reads, outbound upserts, and inbound delivery via
// change streams. Conflict resolution between devices is the database's
// concern; this client only moves records.
package mongosync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fieldops/job-tracker/internal/core/domain"
	"github.com/fieldops/job-tracker/internal/core/ports"
)

const (
	collJobs      = "jobs"
	collLocations = "locations"
	collUsers     = "users"

	pullBuffer = 128
)

// Client is a ports.SyncClient backed by MongoDB collections.
type Client struct {
	db  *mongo.Database
	log zerolog.Logger
}

func NewClient(db *mongo.Database, log zerolog.Logger) *Client {
	return &Client{db: db, log: log}
}

// Bootstrap fetches the full current record set for a scope.
func (c *Client) Bootstrap(ctx context.Context, scope ports.Scope) (*ports.BootstrapData, error) {
	data := &ports.BootstrapData{}
	switch scope.Entity {
	case domain.EntityJob:
		filter := bson.M{}
		if scope.LocationID != nil {
			filter["location_id"] = *scope.LocationID
		}
		cur, err := c.db.Collection(collJobs).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
		if err != nil {
			return nil, fmt.Errorf("bootstrap jobs: %w", err)
		}
		if err := cur.All(ctx, &data.Jobs); err != nil {
			return nil, fmt.Errorf("bootstrap jobs: %w", err)
		}
	case domain.EntityLocation:
		cur, err := c.db.Collection(collLocations).Find(ctx, bson.M{})
		if err != nil {
			return nil, fmt.Errorf("bootstrap locations: %w", err)
		}
		if err := cur.All(ctx, &data.Locations); err != nil {
			return nil, fmt.Errorf("bootstrap locations: %w", err)
		}
	case domain.EntityUser:
		filter := bson.M{}
		if scope.UserID != "" {
			filter["_id"] = scope.UserID
		}
		cur, err := c.db.Collection(collUsers).Find(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("bootstrap users: %w", err)
		}
		if err := cur.All(ctx, &data.Users); err != nil {
			return nil, fmt.Errorf("bootstrap users: %w", err)
		}
	default:
		return nil, fmt.Errorf("bootstrap: unknown entity %q", scope.Entity)
	}
	return data, nil
}

// Push upserts one committed local mutation. Last write wins at the
// document level, matching the plain-write semantics of everything except
// the conditional transition, which was already decided locally.
func (c *Client) Push(ctx context.Context, m ports.OutboundMutation) error {
	opts := options.Replace().SetUpsert(true)
	var err error
	switch {
	case m.Job != nil:
		_, err = c.db.Collection(collJobs).ReplaceOne(ctx, bson.M{"_id": m.Job.ID}, m.Job, opts)
	case m.Location != nil:
		_, err = c.db.Collection(collLocations).ReplaceOne(ctx, bson.M{"_id": m.Location.ID}, m.Location, opts)
	case m.User != nil:
		_, err = c.db.Collection(collUsers).ReplaceOne(ctx, bson.M{"_id": m.User.ID}, m.User, opts)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("push mutation %s: %w", m.MutationID, err)
	}
	return nil
}

// streamEvent is the slice of a change stream document this client cares
// about.
type streamEvent struct {
	OperationType string   `bson:"operationType"`
	FullDocument  bson.Raw `bson:"fullDocument"`
	Ns            struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
	DocumentKey struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// Pull opens a database-level change stream over the three synced
// collections and converts events into InboundChanges. The channel closes
// when ctx is cancelled or the stream breaks; callers reconnect.
func (c *Client) Pull(ctx context.Context) (<-chan ports.InboundChange, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"ns.coll": bson.M{"$in": []string{collJobs, collLocations, collUsers}},
		}}},
	}
	stream, err := c.db.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, fmt.Errorf("open change stream: %w", err)
	}

	out := make(chan ports.InboundChange, pullBuffer)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())
		for stream.Next(ctx) {
			var ev streamEvent
			if err := stream.Decode(&ev); err != nil {
				c.log.Warn().Err(err).Msg("undecodable change stream event skipped")
				continue
			}
			change, ok := c.convert(ev, stream.ResumeToken())
			if !ok {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			c.log.Warn().Err(err).Msg("change stream ended")
		}
	}()
	return out, nil
}

func (c *Client) convert(ev streamEvent, resumeToken bson.Raw) (ports.InboundChange, bool) {
	change := ports.InboundChange{
		EventID:  resumeToken.String(),
		RecordID: ev.DocumentKey.ID,
	}

	switch ev.OperationType {
	case "insert":
		change.Kind = domain.ChangeInsert
	case "update", "replace":
		change.Kind = domain.ChangeUpdate
	case "delete":
		change.Kind = domain.ChangeDelete
	default:
		return change, false
	}

	switch ev.Ns.Coll {
	case collJobs:
		change.Entity = domain.EntityJob
	case collLocations:
		change.Entity = domain.EntityLocation
	case collUsers:
		change.Entity = domain.EntityUser
	default:
		return change, false
	}

	if change.Kind == domain.ChangeDelete {
		return change, true
	}

	switch change.Entity {
	case domain.EntityJob:
		var job domain.Job
		if err := bson.Unmarshal(ev.FullDocument, &job); err != nil {
			c.log.Warn().Err(err).Str("record_id", change.RecordID).Msg("undecodable job document skipped")
			return change, false
		}
		change.Job = &job
	case domain.EntityLocation:
		var loc domain.Location
		if err := bson.Unmarshal(ev.FullDocument, &loc); err != nil {
			c.log.Warn().Err(err).Str("record_id", change.RecordID).Msg("undecodable location document skipped")
			return change, false
		}
		change.Location = &loc
	case domain.EntityUser:
		var user domain.UserProfile
		if err := bson.Unmarshal(ev.FullDocument, &user); err != nil {
			c.log.Warn().Err(err).Str("record_id", change.RecordID).Msg("undecodable user document skipped")
			return change, false
		}
		change.User = &user
	}
	return change, true
}
