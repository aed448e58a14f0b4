package main

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc"
	"github.com/crossbridge-vm/avm2ssa/internal/abcsrc/fixture"
	"github.com/crossbridge-vm/avm2ssa/internal/cfgbuild"
	"github.com/crossbridge-vm/avm2ssa/internal/registry"
)

// fixtureFile is the on-disk shape methodc reads a method body from, since
// spec.md §1 puts real ABC parsing out of scope: everything the decoder,
// cfgbuild and bind passes need is spelled out explicitly instead of being
// pulled from a .abc container. Teacher analogue: cmd/asm's own assembly
// text format stands in for object code the same way this JSON document
// stands in for a parsed method_info entry.
type fixtureFile struct {
	Name       string `json:"name"`
	BytesHex   string `json:"bytes_hex"`
	MaxStack   int32  `json:"max_stack"`
	MaxScope   int32  `json:"max_scope"`
	LocalCount int32  `json:"local_count"`
	NeedsRest  bool   `json:"needs_rest"`
	SetDXNS    bool   `json:"set_dxns"`

	Handlers []fixtureHandler `json:"handlers"`
	Pool     fixturePool      `json:"pool"`
	Classes  []fixtureClass   `json:"classes"`
}

type fixtureHandler struct {
	From     int32  `json:"from"`
	To       int32  `json:"to"`
	Target   int32  `json:"target"`
	TypeName string `json:"type_name"`
}

type fixturePool struct {
	Ints       map[string]int32            `json:"ints"`
	Strings    map[string]string           `json:"strings"`
	Multinames map[string]fixtureMultiname `json:"multinames"`
}

type fixtureMultiname struct {
	Name string `json:"name"`
}

type fixtureClass struct {
	InfoIndex int32  `json:"info_index"`
	Name      string `json:"name"`
	Parent    string `json:"parent"`
	Dynamic   bool   `json:"dynamic"`
}

// loadFixture parses path into a MethodBody/Source/handler list/registry
// quadruple ready for pipeline.Compile.
func loadFixture(path string) (abcsrc.MethodBody, abcsrc.Source, []cfgbuild.HandlerSpec, registry.Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return abcsrc.MethodBody{}, nil, nil, nil, errors.Wrapf(err, "reading fixture %s", path)
	}
	var ff fixtureFile
	if err := json.Unmarshal(raw, &ff); err != nil {
		return abcsrc.MethodBody{}, nil, nil, nil, errors.Wrapf(err, "parsing fixture %s", path)
	}

	codeBytes, err := hex.DecodeString(ff.BytesHex)
	if err != nil {
		return abcsrc.MethodBody{}, nil, nil, nil, errors.Wrapf(err, "decoding bytes_hex in %s", path)
	}

	pool := fixture.NewPool()
	for k, v := range ff.Pool.Ints {
		idx, perr := parseIndex(k)
		if perr != nil {
			return abcsrc.MethodBody{}, nil, nil, nil, perr
		}
		pool.WithInt(idx, v)
	}
	for k, v := range ff.Pool.Strings {
		idx, perr := parseIndex(k)
		if perr != nil {
			return abcsrc.MethodBody{}, nil, nil, nil, perr
		}
		pool.WithString(idx, v)
	}
	for k, v := range ff.Pool.Multinames {
		idx, perr := parseIndex(k)
		if perr != nil {
			return abcsrc.MethodBody{}, nil, nil, nil, perr
		}
		pool.WithMultiname(idx, abcsrc.Multiname{Kind: abcsrc.MultinameQName, Name: v.Name})
	}

	reg := registry.NewStaticRegistry(registry.NewClass("Object", nil))
	byName := map[string]*registry.Class{"Object": reg.RootObjectClass()}
	for _, fc := range ff.Classes {
		parent := byName[fc.Parent]
		c := registry.NewClass(fc.Name, parent)
		c.IsDynamic = fc.Dynamic
		byName[fc.Name] = c
		reg.RegisterClass(fc.InfoIndex, c)
	}

	body := abcsrc.MethodBody{
		Name: ff.Name, Bytes: codeBytes,
		MaxStack: ff.MaxStack, MaxScope: ff.MaxScope, LocalCount: ff.LocalCount,
		NeedsRest: ff.NeedsRest, SetDXNS: ff.SetDXNS,
	}

	handlers := make([]cfgbuild.HandlerSpec, len(ff.Handlers))
	for i, h := range ff.Handlers {
		handlers[i] = cfgbuild.HandlerSpec{
			FromOffset: h.From, ToOffset: h.To, CatchOffset: h.Target,
			ErrorType: h.TypeName, Parent: -1,
		}
	}

	return body, fixture.Source{P: pool}, handlers, reg, nil
}

func parseIndex(key string) (int32, error) {
	idx, err := strconv.ParseInt(key, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid pool index %q", key)
	}
	return int32(idx), nil
}
