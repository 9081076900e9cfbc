package memdriver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/dolmen-go/contextio"
	"github.com/vinicius-lino-figueiredo/gedm/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"
)

// dumpIndex is the Extended JSON form of an index definition.
type dumpIndex struct {
	Name              string `bson:"name"`
	Key               bson.D `bson:"key"`
	Unique            bool   `bson:"unique,omitempty"`
	Sparse            bool   `bson:"sparse,omitempty"`
	ExpireAfterMillis int64  `bson:"expireAfterMillis,omitempty"`
	PartialFilter     bson.D `bson:"partialFilterExpression,omitempty"`
}

// dumpLine is one line of a dump. Every line names its collection and holds
// either an index or a document.
type dumpLine struct {
	Collection string     `bson:"collection"`
	Index      *dumpIndex `bson:"index,omitempty"`
	Document   bson.D     `bson:"document,omitempty"`
}

// Dump writes every collection to w as canonical Extended JSON, one line per
// index followed by one line per document. The _id index is implicit.
func (d *Database) Dump(ctx context.Context, w io.Writer) error {
	if err := d.mu.RLockWithContext(ctx); err != nil {
		return err
	}
	defer d.mu.RUnlock()

	wr := bufio.NewWriter(contextio.NewWriter(ctx, w))
	for _, name := range slices.Sorted(maps.Keys(d.stores)) {
		s := d.stores[name]
		for _, idx := range s.indexes[1:] {
			line, err := d.dumpIndexLine(name, idx.Model())
			if err != nil {
				return err
			}
			if err := writeLine(wr, line); err != nil {
				return err
			}
		}
		c := &Collection{db: d, name: name}
		for _, doc := range c.visible(s) {
			var ordered bson.D
			if err := d.decoder.Decode(doc, &ordered); err != nil {
				return err
			}
			if err := writeLine(wr, dumpLine{Collection: name, Document: ordered}); err != nil {
				return err
			}
		}
	}
	return wr.Flush()
}

func (d *Database) dumpIndexLine(collection string, model domain.IndexModel) (dumpLine, error) {
	idx := &dumpIndex{
		Name:              model.GeneratedName(),
		Key:               model.Keys,
		Unique:            model.Unique,
		Sparse:            model.Sparse,
		ExpireAfterMillis: model.ExpireAfter.Milliseconds(),
	}
	if model.PartialFilter != nil {
		if err := d.decoder.Decode(map[string]any(model.PartialFilter), &idx.PartialFilter); err != nil {
			return dumpLine{}, err
		}
	}
	return dumpLine{Collection: collection, Index: idx}, nil
}

func writeLine(w io.Writer, line dumpLine) error {
	b, err := bson.MarshalExtJSON(line, true, false)
	if err != nil {
		return err
	}
	_, err = w.Write(append(b, '\n'))
	return err
}

// Restore replaces the content of the database with a dump written by
// [Database.Dump]. The database is left untouched when the dump is invalid.
func (d *Database) Restore(ctx context.Context, r io.Reader) error {
	if err := d.mu.LockWithContext(ctx); err != nil {
		return err
	}
	defer d.mu.Unlock()

	previous := d.stores
	d.stores = make(map[string]*store)
	if err := d.load(ctx, r); err != nil {
		d.stores = previous
		return err
	}
	d.logger.Info("database restored", zap.String("database", d.name), zap.Int("collections", len(d.stores)))
	return nil
}

func (d *Database) load(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(contextio.NewReader(ctx, r))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	n := 0
	for scanner.Scan() {
		n++
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		var line dumpLine
		if err := bson.UnmarshalExtJSON(b, false, &line); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
		if err := d.loadLine(line); err != nil {
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return scanner.Err()
}

func (d *Database) loadLine(line dumpLine) error {
	if line.Collection == "" {
		return errors.New("missing collection name")
	}
	s, err := d.store(line.Collection, true)
	if err != nil {
		return err
	}
	c := &Collection{db: d, name: line.Collection}

	if line.Index != nil {
		model := domain.IndexModel{
			Keys:        line.Index.Key,
			Name:        line.Index.Name,
			Unique:      line.Index.Unique,
			Sparse:      line.Index.Sparse,
			ExpireAfter: time.Duration(line.Index.ExpireAfterMillis) * time.Millisecond,
		}
		if line.Index.PartialFilter != nil {
			model.PartialFilter = bson.M{}
			for _, e := range line.Index.PartialFilter {
				model.PartialFilter[e.Key] = e.Value
			}
		}
		if model, err = normalizeModel(model); err != nil {
			return err
		}
		idx, err := d.newIndex(model)
		if err != nil {
			return err
		}
		if err := idx.Reset(s.docs...); err != nil {
			return err
		}
		s.indexes = append(s.indexes, idx)
		return nil
	}

	if line.Document == nil {
		return errors.New("line has neither index nor document")
	}
	_, err = c.insertDoc(s, line.Document)
	return err
}

// SaveFile dumps the database to filename. The previous content of the file
// is kept if the process dies while writing.
func (d *Database) SaveFile(ctx context.Context, filename string) error {
	err := d.storage.WriteFile(ctx, filename, func(w io.Writer) error {
		return d.Dump(ctx, w)
	})
	if err != nil {
		return err
	}
	d.logger.Info("datafile saved", zap.String("database", d.name), zap.String("file", filename))
	return nil
}

// LoadFile replaces the content of the database with the dump stored in
// filename. A missing file loads an empty database.
func (d *Database) LoadFile(ctx context.Context, filename string) error {
	r, err := d.storage.ReadFile(ctx, filename)
	if err != nil {
		return err
	}
	defer r.Close()
	return d.Restore(ctx, r)
}
