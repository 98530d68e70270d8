package policy

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Canonical hashing of policy packs. The parsed pack is converted to a
// generic tree, then recursively canonicalized: object keys sorted at every
// depth, the enumerated set-like array paths sorted, ordered arrays (rules,
// obligations) left in author order, empty objects dropped. Two semantically
// identical packs always hash to the same 64-hex SHA-256.

// setLikePaths enumerates exactly which array fields are order-insensitive.
// Everything not listed keeps author order.
var setLikePaths = map[string]bool{
	"metadata.tags":                     true,
	"scope.branches.include":            true,
	"scope.branches.exclude":            true,
	"scope.repos.include":               true,
	"scope.repos.exclude":               true,
	"scope.actorSignals":                true,
	"scope.prEvents":                    true,
	"trigger.anyChangedPaths":           true,
	"trigger.allChangedPaths":           true,
	"artifacts.requiredTypes":           true,
	"evaluation.skipIf.labels":          true,
	"evaluation.skipIf.allChangedPaths": true,
	"evaluation.skipIf.prBodyContains":  true,
}

// CanonicalJSON renders the pack's canonical JSON form
func CanonicalJSON(pack *PolicyPack) ([]byte, error) {
	intermediate, err := json.Marshal(pack)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: pre-marshal failed: %w", err)
	}

	var generic interface{}
	dec := json.NewDecoder(bytes.NewReader(intermediate))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: intermediate decode failed: %w", err)
	}

	generic = normalize(generic, "")
	return marshalCanonical(generic)
}

// Hash returns the full 64-hex SHA-256 of the canonical form
func Hash(pack *PolicyPack) (string, error) {
	b, err := CanonicalJSON(pack)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// ShortHash is the display form: the first 16 hex chars
func ShortHash(full string) string {
	if len(full) <= 16 {
		return full
	}
	return full[:16]
}

// normalize walks the tree applying the canonicalization rules. path tracks
// the dotted field path for set-like array lookup; rule and obligation array
// indices are collapsed so every rule's trigger normalizes the same way.
func normalize(v interface{}, path string) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			child := normalize(val, childPath(path, k))
			if child == nil {
				continue
			}
			if m, ok := child.(map[string]interface{}); ok && len(m) == 0 {
				// Empty objects are dropped: {} and an absent field are
				// the same semantics.
				continue
			}
			out[k] = child
		}
		return out
	case []interface{}:
		for i, e := range t {
			t[i] = normalize(e, path)
		}
		if setLikePaths[path] {
			sort.Slice(t, func(i, j int) bool {
				return stringify(t[i]) < stringify(t[j])
			})
		}
		return t
	default:
		return v
	}
}

// childPath collapses intermediate array containers so a rule's trigger path
// is "trigger.anyChangedPaths" regardless of rule index.
func childPath(parent, key string) string {
	if parent == "" || parent == "rules" || parent == "obligations" {
		return key
	}
	return parent + "." + key
}

func stringify(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func marshalCanonical(v interface{}) ([]byte, error) {
	var buf bytes.Buffer

	switch t := v.(type) {
	case nil:
		return []byte("null"), nil
	case bool:
		if t {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case json.Number:
		return []byte(t.String()), nil
	case string:
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalCanonical(elem)
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalCanonical(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := marshalCanonical(t[k])
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
	}
}

// DiffHashes renders a short provenance line for two pack hashes
func DiffHashes(a, b string) string {
	if a == b {
		return "identical (" + ShortHash(a) + ")"
	}
	return strings.Join([]string{ShortHash(a), "->", ShortHash(b)}, " ")
}
