package kv

import "sync"

// Key layout:
//
//	ws:{id}                              workspace JSON
//	ws:idx:slug:{slug}                   workspace id
//	col:{id}                             collection JSON
//	col:idx:ws:{workspaceID}:{id}        empty
//	ent:{id}                             entity JSON
//	ent:idx:type:{workspaceID}:{type}:{id} empty
//	mem:c:{collectionID}:{entityID}      added_at (RFC3339Nano)
//	mem:e:{entityID}:{collectionID}      empty
const (
	workspacePrefix  = "ws:"
	collectionPrefix = "col:"
	entityPrefix     = "ent:"
	memberByColl     = "mem:c:"
	memberByEntity   = "mem:e:"
)

// keyPool provides reusable byte slices for building lookup keys.
var keyPool = sync.Pool{
	New: func() any {
		// Prefix, index name, workspace id and a UUID fit comfortably.
		return make([]byte, 0, 256)
	},
}

// buildKey constructs a key from prefix and suffix using a pooled buffer.
// The returned slice is valid until releaseKey is called, so it must only be
// used for reads. Writes use newKey because badger keeps the key until commit.
//
//	key := buildKey(entityPrefix, id)
//	defer releaseKey(key)
//	item, err := txn.Get(key)
func buildKey(prefix, suffix string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return buf
}

// buildIndexKey constructs an index key (prefix + "idx:" + name + ":" + value)
// using a pooled buffer. The same rules as buildKey apply.
func buildIndexKey(prefix, indexName, value string) []byte {
	buf, _ := keyPool.Get().([]byte)
	buf = buf[:0]
	buf = appendIndexKey(buf, prefix, indexName, value)
	return buf
}

// releaseKey returns a key buffer to the pool for reuse.
func releaseKey(key []byte) {
	if cap(key) <= 512 {
		keyPool.Put(key[:0])
	}
}

func appendIndexKey(buf []byte, prefix, indexName, value string) []byte {
	buf = append(buf, prefix...)
	buf = append(buf, "idx:"...)
	buf = append(buf, indexName...)
	buf = append(buf, ':')
	buf = append(buf, value...)
	return buf
}

// newKey returns a freshly allocated key joined from parts with ':'.
func newKey(prefix string, parts ...string) []byte {
	n := len(prefix)
	for _, p := range parts {
		n += len(p) + 1
	}
	buf := make([]byte, 0, n)
	buf = append(buf, prefix...)
	for i, p := range parts {
		if i > 0 {
			buf = append(buf, ':')
		}
		buf = append(buf, p...)
	}
	return buf
}

// newIndexKey returns a freshly allocated index key.
func newIndexKey(prefix, indexName, value string) []byte {
	return appendIndexKey(make([]byte, 0, len(prefix)+len(indexName)+len(value)+5), prefix, indexName, value)
}

func slugIndexKey(slug string) []byte { return newIndexKey(workspacePrefix, "slug", slug) }

func collectionWorkspaceKey(workspaceID, collectionID string) []byte {
	return newIndexKey(collectionPrefix, "ws", workspaceID+":"+collectionID)
}

func entityTypeKey(workspaceID, objectType, entityID string) []byte {
	return newIndexKey(entityPrefix, "type", workspaceID+":"+objectType+":"+entityID)
}

func memberCollKey(collectionID, entityID string) []byte {
	return newKey(memberByColl, collectionID, entityID)
}

func memberEntityKey(entityID, collectionID string) []byte {
	return newKey(memberByEntity, entityID, collectionID)
}
