package inscription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Operations
const (
	OpDeploy   = "deploy"
	OpMint     = "mint"
	OpTransfer = "transfer"
)

// Canonical field order per operation. Assemble requires exactly these keys.
var opFields = map[string][]string{
	OpDeploy:   {"tick", "max", "lim"},
	OpMint:     {"tick", "amt"},
	OpTransfer: {"tick", "amt", "to"},
}

const (
	maxTickerLen = 32

	PrefixJSON  = "data:application/json,"
	PrefixPlain = "data:,"
)

// Descriptor is the chain-agnostic form of an inscription operation.
type Descriptor struct {
	Protocol string
	Op       string
	Fields   map[string]string
	Nonce    string
}

// Assembler renders descriptors for one (chain, protocol) pair and reads
// them back.
type Assembler interface {
	Protocol() string
	Chain() string
	UsesNonce() bool
	Assemble(op string, fields map[string]string) (string, error)
	Parse(payload string) (*Descriptor, error)
}

// RequiredFields returns the canonical keys of op, or nil if unknown.
func RequiredFields(op string) []string {
	keys := opFields[op]
	if keys == nil {
		return nil
	}
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// JSONAssembler renders `<prefix>{"p":..,"op":..,<fields>[,"nonce":..]}`,
// the data-URI form used by JSON inscription protocols.
type JSONAssembler struct {
	protocol string
	chain    string
	prefix   string
	nonce    bool
}

func NewJSONAssembler(chain, protocol, prefix string, withNonce bool) *JSONAssembler {
	if prefix == "" {
		prefix = PrefixJSON
	}
	return &JSONAssembler{protocol: protocol, chain: chain, prefix: prefix, nonce: withNonce}
}

func (a *JSONAssembler) Protocol() string { return a.protocol }
func (a *JSONAssembler) Chain() string    { return a.chain }
func (a *JSONAssembler) UsesNonce() bool  { return a.nonce }

func (a *JSONAssembler) Assemble(op string, fields map[string]string) (string, error) {
	keys, ok := opFields[op]
	if !ok {
		return "", &ValidationError{Field: "op", Reason: fmt.Sprintf("unsupported operation %q", op)}
	}
	if err := validateFields(keys, fields); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.WriteString(a.prefix)
	buf.WriteString(`{"p":`)
	writeJSONString(&buf, a.protocol)
	buf.WriteString(`,"op":`)
	writeJSONString(&buf, op)
	for _, k := range keys {
		buf.WriteByte(',')
		writeJSONString(&buf, k)
		buf.WriteByte(':')
		writeJSONString(&buf, fields[k])
	}
	if a.nonce {
		buf.WriteString(`,"nonce":`)
		writeJSONString(&buf, NextNonce())
	}
	buf.WriteByte('}')
	return buf.String(), nil
}

func (a *JSONAssembler) Parse(payload string) (*Descriptor, error) {
	start := strings.IndexByte(payload, '{')
	if start < 0 || !strings.HasPrefix(payload, "data:") {
		return nil, &MalformedPayloadError{Reason: "no data-URI JSON object"}
	}

	dec := json.NewDecoder(strings.NewReader(payload[start:]))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &MalformedPayloadError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}

	values := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			if k != "nonce" {
				return nil, &MalformedPayloadError{Reason: fmt.Sprintf("field %q is not a string", k)}
			}
			n, isNum := v.(json.Number)
			if !isNum {
				return nil, &MalformedPayloadError{Reason: "nonce is neither string nor number"}
			}
			s = n.String()
		}
		values[k] = s
	}

	if values["p"] != a.protocol {
		return nil, &MalformedPayloadError{Reason: fmt.Sprintf("protocol %q, expected %q", values["p"], a.protocol)}
	}
	op := values["op"]
	keys, ok := opFields[op]
	if !ok {
		return nil, &MalformedPayloadError{Reason: fmt.Sprintf("unsupported operation %q", op)}
	}

	d := &Descriptor{Protocol: a.protocol, Op: op, Fields: make(map[string]string, len(keys))}
	if nonce, has := values["nonce"]; has {
		d.Nonce = nonce
	} else if a.nonce {
		return nil, &MalformedPayloadError{Reason: "nonce field missing"}
	}

	delete(values, "p")
	delete(values, "op")
	delete(values, "nonce")
	if err := validateFields(keys, values); err != nil {
		return nil, &MalformedPayloadError{Reason: err.Error()}
	}
	for _, k := range keys {
		d.Fields[k] = values[k]
	}
	return d, nil
}

func validateFields(keys []string, fields map[string]string) error {
	if len(fields) != len(keys) {
		return &ValidationError{Reason: fmt.Sprintf("expected %d fields %v, got %d", len(keys), keys, len(fields))}
	}
	for _, k := range keys {
		v, ok := fields[k]
		if !ok {
			return &ValidationError{Field: k, Reason: "missing"}
		}
		if err := validateValue(k, v); err != nil {
			return err
		}
	}
	return nil
}

// ValidateField checks a single descriptor value (tick, amt, max, lim, to)
// so interactive flows can reject bad input before assembling.
func ValidateField(key, v string) error {
	return validateValue(key, v)
}

func validateValue(key, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: key, Reason: "empty"}
	}
	switch key {
	case "tick":
		if len([]rune(v)) > maxTickerLen {
			return &ValidationError{Field: key, Reason: fmt.Sprintf("longer than %d characters", maxTickerLen)}
		}
		if _, err := strconv.ParseFloat(v, 64); err == nil {
			return &ValidationError{Field: key, Reason: "ticker must not be numeric"}
		}
	case "amt", "max", "lim":
		d, err := decimal.NewFromString(v)
		if err != nil {
			return &ValidationError{Field: key, Reason: "not a number"}
		}
		if !d.IsPositive() {
			return &ValidationError{Field: key, Reason: "must be positive"}
		}
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// Registry maps (chain, protocol) to an Assembler.
type Registry struct {
	assemblers map[string]Assembler
}

func NewRegistry() *Registry {
	return &Registry{assemblers: make(map[string]Assembler)}
}

func registryKey(chain, protocol string) string {
	return chain + "/" + strings.ToLower(protocol)
}

func (r *Registry) Register(a Assembler) {
	r.assemblers[registryKey(a.Chain(), a.Protocol())] = a
}

func (r *Registry) Get(chain, protocol string) (Assembler, bool) {
	a, ok := r.assemblers[registryKey(chain, protocol)]
	return a, ok
}

// Protocols lists the protocols registered for chain, sorted.
func (r *Registry) Protocols(chain string) []string {
	var out []string
	for _, a := range r.assemblers {
		if a.Chain() == chain {
			out = append(out, a.Protocol())
		}
	}
	sort.Strings(out)
	return out
}

// DefaultRegistry registers the protocols the bot supports out of the box.
func DefaultRegistry(evmChain, tonChain string) *Registry {
	r := NewRegistry()
	r.Register(NewJSONAssembler(evmChain, "ierc-20", PrefixJSON, true))
	r.Register(NewJSONAssembler(evmChain, "p-20", PrefixJSON, true))
	r.Register(NewJSONAssembler(evmChain, "erc-20", PrefixPlain, false))
	r.Register(NewJSONAssembler(tonChain, "ton-20", PrefixJSON, false))
	r.Register(NewJSONAssembler(tonChain, "gram-20", PrefixJSON, false))
	return r
}
