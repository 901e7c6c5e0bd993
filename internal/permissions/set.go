package permissions

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SchemaVersion identifies the permission key enumeration below. Bump it
// whenever a key is added so stored sets can be migrated explicitly.
const SchemaVersion = 1

// State is the tri-state value a permission key resolves to.
type State uint8

const (
	StateDefault State = iota // inherit from a less specific tier
	StateAllowed
	StateDenied
)

// Key names a single permission.
type Key string

// General server management.
const (
	KeyManageServer   Key = "MANAGE_SERVER"
	KeyManageRoles    Key = "MANAGE_ROLES"
	KeyManageChannels Key = "MANAGE_CHANNELS"
	KeyCreateInvite   Key = "CREATE_INVITE"
)

// Membership.
const (
	KeyKickMembers     Key = "KICK_MEMBERS"
	KeyBanMembers      Key = "BAN_MEMBERS"
	KeyChangeNickname  Key = "CHANGE_NICKNAME"
	KeyManageNicknames Key = "MANAGE_NICKNAMES"
)

// Text channels.
const (
	KeyViewChannel        Key = "VIEW_CHANNEL"
	KeySendMessages       Key = "SEND_MESSAGES"
	KeyManageMessages     Key = "MANAGE_MESSAGES"
	KeyReadMessageHistory Key = "READ_MESSAGE_HISTORY"
	KeyMentionEveryone    Key = "MENTION_EVERYONE"
	KeyAttachFiles        Key = "ATTACH_FILES"
)

// Voice channels.
const (
	KeyConnect       Key = "CONNECT"
	KeySpeak         Key = "SPEAK"
	KeyMuteMembers   Key = "MUTE_MEMBERS"
	KeyDeafenMembers Key = "DEAFEN_MEMBERS"
	KeyMoveMembers   Key = "MOVE_MEMBERS"
)

// Keys is the canonical ordering of every known permission key. Encode
// walks it so serialized sets are byte-stable.
var Keys = []Key{
	KeyManageServer,
	KeyManageRoles,
	KeyManageChannels,
	KeyCreateInvite,
	KeyKickMembers,
	KeyBanMembers,
	KeyChangeNickname,
	KeyManageNicknames,
	KeyViewChannel,
	KeySendMessages,
	KeyManageMessages,
	KeyReadMessageHistory,
	KeyMentionEveryone,
	KeyAttachFiles,
	KeyConnect,
	KeySpeak,
	KeyMuteMembers,
	KeyDeafenMembers,
	KeyMoveMembers,
}

var knownKeys = func() map[Key]bool {
	m := make(map[Key]bool, len(Keys))
	for _, k := range Keys {
		m[k] = true
	}
	return m
}()

// IsKnown reports whether k is part of the current schema.
func IsKnown(k Key) bool { return knownKeys[k] }

// Set maps every known permission key to a State. The zero value is not
// usable; construct with NewSet or SetOf. Sets are immutable: With and
// Overlay return copies.
type Set struct {
	m map[Key]State
}

// NewSet returns a set with every known key at StateDefault.
func NewSet() Set {
	m := make(map[Key]State, len(Keys))
	for _, k := range Keys {
		m[k] = StateDefault
	}
	return Set{m: m}
}

// AllAllowed returns a set with every known key at StateAllowed.
func AllAllowed() Set {
	m := make(map[Key]State, len(Keys))
	for _, k := range Keys {
		m[k] = StateAllowed
	}
	return Set{m: m}
}

// DefaultEveryonePerms is the baseline permission set granted to a
// server's default role on creation.
func DefaultEveryonePerms() Set {
	s := NewSet()
	for _, k := range []Key{
		KeyViewChannel,
		KeySendMessages,
		KeyReadMessageHistory,
		KeyConnect,
		KeySpeak,
		KeyCreateInvite,
		KeyChangeNickname,
	} {
		s.m[k] = StateAllowed
	}
	return s
}

// SetOf builds a set from explicit states; unlisted keys are StateDefault.
// Unknown keys are rejected.
func SetOf(states map[Key]State) (Set, error) {
	s := NewSet()
	for k, v := range states {
		if !knownKeys[k] {
			return Set{}, fmt.Errorf("permissions: unknown key %q", k)
		}
		if v > StateDenied {
			return Set{}, fmt.Errorf("permissions: invalid state %d for key %q", v, k)
		}
		s.m[k] = v
	}
	return s, nil
}

// Get returns the state for k, or StateDefault for an unknown key.
func (s Set) Get(k Key) State {
	return s.m[k]
}

// With returns a copy of s with k set to v.
func (s Set) With(k Key, v State) Set {
	out := make(map[Key]State, len(s.m))
	for key, val := range s.m {
		out[key] = val
	}
	out[k] = v
	return Set{m: out}
}

// Allows reports whether k resolved to StateAllowed. Anything else,
// including StateDefault, is treated as denied.
func (s Set) Allows(k Key) bool {
	return s.m[k] == StateAllowed
}

// Overlay merges override onto base: for each key the override value wins
// unless it is StateDefault. Associative but not commutative, which is what
// lets the resolver fold tiers from least to most specific.
func Overlay(base, override Set) Set {
	m := make(map[Key]State, len(Keys))
	for _, k := range Keys {
		if v := override.m[k]; v != StateDefault {
			m[k] = v
		} else {
			m[k] = base.m[k]
		}
	}
	return Set{m: m}
}

// state codes used in the serialized form.
const (
	codeAllowed = "A"
	codeDenied  = "D"
	codeDefault = "-"
)

// Encode serializes the set as "KEY=code" pairs joined by ";" in canonical
// key order. Every known key appears, so the output length is fixed for a
// given schema version.
func (s Set) Encode() string {
	var b strings.Builder
	for i, k := range Keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(string(k))
		b.WriteByte('=')
		switch s.m[k] {
		case StateAllowed:
			b.WriteString(codeAllowed)
		case StateDenied:
			b.WriteString(codeDenied)
		default:
			b.WriteString(codeDefault)
		}
	}
	return b.String()
}

// Decode parses the Encode format. Unknown keys are rejected; keys absent
// from the input default to StateDefault, which tolerates sets stored
// before a key was added to the schema.
func Decode(encoded string) (Set, error) {
	s := NewSet()
	if encoded == "" {
		return s, nil
	}
	for _, pair := range strings.Split(encoded, ";") {
		key, code, ok := strings.Cut(pair, "=")
		if !ok {
			return Set{}, fmt.Errorf("permissions: malformed pair %q", pair)
		}
		k := Key(key)
		if !knownKeys[k] {
			return Set{}, fmt.Errorf("permissions: unknown key %q", k)
		}
		switch code {
		case codeAllowed:
			s.m[k] = StateAllowed
		case codeDenied:
			s.m[k] = StateDenied
		case codeDefault:
			s.m[k] = StateDefault
		default:
			return Set{}, fmt.Errorf("permissions: unknown state code %q for key %q", code, k)
		}
	}
	return s, nil
}

// MarshalJSON emits the Encode form as a JSON string, which is the wire
// payload format for permission sets.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Encode())
}

func (s *Set) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err != nil {
		return err
	}
	decoded, err := Decode(encoded)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// String returns a human-readable summary listing allowed and denied keys.
func (s Set) String() string {
	var allowed, denied []string
	for _, k := range Keys {
		switch s.m[k] {
		case StateAllowed:
			allowed = append(allowed, string(k))
		case StateDenied:
			denied = append(denied, string(k))
		}
	}
	if len(allowed) == 0 && len(denied) == 0 {
		return "ALL_DEFAULT"
	}
	var parts []string
	if len(allowed) > 0 {
		parts = append(parts, "allow["+strings.Join(allowed, " ")+"]")
	}
	if len(denied) > 0 {
		parts = append(parts, "deny["+strings.Join(denied, " ")+"]")
	}
	return strings.Join(parts, " ")
}
