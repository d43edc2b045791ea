package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore is the production store driver. Credentials come from either a
// service-account file or inline JSON; exactly one is configured by the
// settings loader.
type Firestore struct {
	client *firestore.Client
}

// FirestoreConfig carries the connection settings.
type FirestoreConfig struct {
	ProjectID       string
	CredentialsFile string
	CredentialsJSON string
}

// OpenFirestore connects to the project's Firestore database.
func OpenFirestore(ctx context.Context, cfg FirestoreConfig) (*Firestore, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("open firestore: project id is required")
	}
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := firestore.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w: %v", ErrUnavailable, err)
	}
	return &Firestore{client: client}, nil
}

func (f *Firestore) Create(ctx context.Context, coll string, data map[string]any, id string) (string, error) {
	var ref *firestore.DocumentRef
	if id == "" {
		ref = f.client.Collection(coll).NewDoc()
	} else {
		ref = f.client.Collection(coll).Doc(id)
	}
	if _, err := ref.Create(ctx, data); err != nil {
		return "", fmt.Errorf("create %s/%s: %w", coll, ref.ID, mapFirestoreErr(err))
	}
	return ref.ID, nil
}

func (f *Firestore) Get(ctx context.Context, coll, id string) (map[string]any, error) {
	snap, err := f.client.Collection(coll).Doc(id).Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", coll, id, mapFirestoreErr(err))
	}
	return snap.Data(), nil
}

func (f *Firestore) Update(ctx context.Context, coll, id string, patch map[string]any) error {
	updates := make([]firestore.Update, 0, len(patch))
	for k, v := range patch {
		updates = append(updates, firestore.Update{Path: k, Value: v})
	}
	// Update (not Set) so a missing document reports NotFound instead of
	// being silently created, and unnamed keys are left untouched.
	if _, err := f.client.Collection(coll).Doc(id).Update(ctx, updates); err != nil {
		return fmt.Errorf("update %s/%s: %w", coll, id, mapFirestoreErr(err))
	}
	return nil
}

func (f *Firestore) Delete(ctx context.Context, coll, id string) error {
	// Firestore deletes are idempotent; check existence first so missing
	// documents are reported, never swallowed.
	if _, err := f.client.Collection(coll).Doc(id).Get(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, mapFirestoreErr(err))
	}
	if _, err := f.client.Collection(coll).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete %s/%s: %w", coll, id, mapFirestoreErr(err))
	}
	return nil
}

func (f *Firestore) Query(ctx context.Context, coll string, filters []Filter, opts ...QueryOption) ([]Document, error) {
	var cfg queryConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	q := f.client.Collection(coll).Query
	for _, flt := range filters {
		q = q.Where(flt.Field, string(flt.Op), flt.Value)
	}
	if cfg.hasOrder {
		dir := firestore.Asc
		if cfg.desc {
			dir = firestore.Desc
		}
		q = q.OrderBy(cfg.orderBy, dir)
	}
	if cfg.hasLimit {
		q = q.Limit(cfg.limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", coll, mapFirestoreErr(err))
		}
		out = append(out, Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return out, nil
}

func (f *Firestore) Collections(ctx context.Context) ([]string, error) {
	iter := f.client.Collections(ctx)
	var names []string
	for {
		ref, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list collections: %w", mapFirestoreErr(err))
		}
		names = append(names, ref.ID)
	}
	return names, nil
}

// Ping verifies connectivity with a single bounded read.
func (f *Firestore) Ping(ctx context.Context) error {
	iter := f.client.Collection(TeamsCollection).Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && err != iterator.Done {
		return fmt.Errorf("ping firestore: %w", mapFirestoreErr(err))
	}
	return nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

// mapFirestoreErr folds gRPC status codes into the port's sentinel errors.
func mapFirestoreErr(err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		return err
	}
}
