package spot

import (
	"fmt"

	"github.com/uhyunpark/hyperspot/pkg/storage"
)

// Outbox carries match/cancel requests to the external matcher. The engine
// only appends; the matcher side drains it once per block.
type Outbox interface {
	Append(cmd Command) (uint64, error)
	Pending() ([]Command, error)
	Drain() ([]Command, error)
	UpdatePayload(id uint64, payload []byte) error
}

var commandMaxKey = []byte("cmd:max")

func commandKey(id uint64) []byte { return storage.Key("cmd:", storage.Seq(id)) }

// KVOutbox stores commands under sequential ids in a KV.
type KVOutbox struct {
	kv storage.KV
}

func NewKVOutbox(kv storage.KV) *KVOutbox {
	return &KVOutbox{kv: kv}
}

func (o *KVOutbox) Append(cmd Command) (uint64, error) {
	last, err := storage.GetUint64(o.kv, commandMaxKey)
	if err != nil {
		return 0, err
	}
	id, err := addChecked(last, 1)
	if err != nil {
		return 0, err
	}
	cmd.ID = id
	if err := storage.PutJSON(o.kv, commandKey(id), cmd); err != nil {
		return 0, err
	}
	return id, storage.PutUint64(o.kv, commandMaxKey, id)
}

func (o *KVOutbox) Pending() ([]Command, error) {
	last, err := storage.GetUint64(o.kv, commandMaxKey)
	if err != nil {
		return nil, err
	}
	out := make([]Command, 0, last)
	for id := uint64(1); id <= last; id++ {
		var cmd Command
		found, err := storage.GetJSON(o.kv, commandKey(id), &cmd)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, cmd)
		}
	}
	return out, nil
}

// Drain returns the pending commands in append order and empties the
// outbox. Ids restart at 1 afterwards.
func (o *KVOutbox) Drain() ([]Command, error) {
	cmds, err := o.Pending()
	if err != nil {
		return nil, err
	}
	for _, c := range cmds {
		if err := o.kv.Delete(commandKey(c.ID)); err != nil {
			return nil, err
		}
	}
	if err := o.kv.Delete(commandMaxKey); err != nil {
		return nil, err
	}
	return cmds, nil
}

// UpdatePayload lets the matcher annotate a pending command.
func (o *KVOutbox) UpdatePayload(id uint64, payload []byte) error {
	var cmd Command
	found, err := storage.GetJSON(o.kv, commandKey(id), &cmd)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrCommandNotFound, id)
	}
	cmd.Payload = append([]byte(nil), payload...)
	return storage.PutJSON(o.kv, commandKey(id), cmd)
}

var _ Outbox = (*KVOutbox)(nil)
