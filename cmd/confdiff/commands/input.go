package commands

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/goliatone/go-confdiff"
	"github.com/goliatone/go-confdiff/internal/hydrate"
	"github.com/goliatone/go-confdiff/layering"
	"github.com/spf13/cobra"
)

// customResource names documents compared with --keys and no --resource.
const customResource = "custom"

type inputFlags struct {
	resource   string
	keys       string
	current    string
	desired    []string
	selectPath string
	guards     []string
	strict     bool
	output     string
	exitCode   bool
}

func (in *inputFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&in.resource, "resource", "r", "", "Resource whose identity keys apply (see 'confdiff resources')")
	flags.StringVarP(&in.keys, "keys", "k", "", "Identity keys as field:depth[|depth], overriding the resource keys")
	flags.StringVar(&in.current, "current", "", "Document the device currently runs")
	flags.StringArrayVar(&in.desired, "desired", nil, "Desired document; repeat to layer, later wins, or prefix with level[:name]= to rank by level")
	flags.StringVar(&in.selectPath, "select", "", "Dotted path of the subtree to compare, e.g. config")
	flags.StringArrayVar(&in.guards, "guard", nil, "Rule protecting matching records from removal, as name=expr or expr")
	flags.BoolVar(&in.strict, "strict", false, "Fail on records sharing an identity instead of merging them")
	flags.StringVarP(&in.output, "output", "o", formatJSON, "Output format: json, yaml or paths")
	flags.BoolVar(&in.exitCode, "exit-code", false, "Exit with status 1 when the result is not empty")
	_ = cmd.MarkFlagRequired("current")
	_ = cmd.MarkFlagRequired("desired")
}

// target is the resource a command reconciles.
type target struct {
	name  string
	keys  confdiff.KeySpec
	shape confdiff.Kind
	// registered reports that name came from the resource registry.
	registered bool
}

func (a *app) target(in *inputFlags) (target, error) {
	if in.resource == "" && in.keys == "" {
		return target{}, errors.New("either --resource or --keys is required")
	}
	t := target{name: customResource, shape: confdiff.KindNull}
	if in.resource != "" {
		resource, err := a.resources.Lookup(in.resource)
		if err != nil {
			return target{}, err
		}
		t = target{name: resource.Name, keys: resource.Keys, shape: resource.Shape, registered: true}
	}
	if in.keys != "" {
		keys, err := confdiff.ParseKeySpec(in.keys)
		if err != nil {
			return target{}, err
		}
		t.keys = keys
		t.registered = false
	}
	return t, nil
}

func (a *app) decode(t target, in *inputFlags, path string) (confdiff.Value, error) {
	var opts []hydrate.DecoderOption
	if in.selectPath != "" {
		opts = append(opts, hydrate.WithPreHook(hydrate.SelectPath(strings.Split(in.selectPath, ".")...)))
	} else if t.name != customResource {
		opts = append(opts, hydrate.WithPreHook(hydrate.SelectResource()))
	}
	if t.shape != confdiff.KindNull {
		opts = append(opts, hydrate.WithPostHook(hydrate.RequireShape(t.shape)))
	}
	doc, err := hydrate.DecodeFile(path, t.name, opts...)
	if err != nil {
		return confdiff.Value{}, err
	}
	if doc.IsNull() && t.shape == confdiff.KindSequence {
		return confdiff.NewSequence(), nil
	}
	return doc, nil
}

// desiredStack decodes every --desired argument into a layer. Plain paths
// rank as device peers, the later the stronger; "site:dc1=path" style
// arguments rank by their level.
func (a *app) desiredStack(t target, in *inputFlags) (*confdiff.Stack, error) {
	if len(in.desired) == 0 {
		return nil, errors.New("at least one --desired document is required")
	}
	documents := map[string]confdiff.Value{}
	sources := make([]layering.Source, 0, len(in.desired))
	for _, arg := range slices.Backward(in.desired) {
		source, path, err := parseLayerArg(t.name, arg)
		if err != nil {
			return nil, err
		}
		if _, ok := documents[source.Identifier()]; ok {
			return nil, fmt.Errorf("desired layer %s given twice", source.Identifier())
		}
		doc, err := a.decode(t, in, path)
		if err != nil {
			return nil, err
		}
		documents[source.Identifier()] = doc
		sources = append(sources, source)
	}
	return confdiff.NewChainStack(t.keys, layering.NewChain(sources...), func(source layering.Source) (confdiff.Layer, bool) {
		doc, ok := documents[source.Identifier()]
		return confdiff.LayerFor(source, doc), ok
	})
}

func parseLayerArg(resource, arg string) (layering.Source, string, error) {
	spec, path, found := strings.Cut(arg, "=")
	if !found {
		return layering.Source{Resource: resource, Level: layering.LevelDevice, Name: arg}, arg, nil
	}
	levelName, name, _ := strings.Cut(spec, ":")
	level := layering.ParseLevel(levelName)
	if level == layering.LevelUnknown {
		return layering.Source{}, "", fmt.Errorf("desired layer %q: unknown level %q", arg, levelName)
	}
	if path == "" {
		return layering.Source{}, "", fmt.Errorf("desired layer %q: path is required", arg)
	}
	if level != layering.LevelDefaults && name == "" {
		name = path
	}
	return layering.Source{Resource: resource, Level: level, Name: name}, path, nil
}

// loadCurrent decodes the current document. Documents compared with --keys
// take their shape from it, so a null desired layer reads as empty.
func (a *app) loadCurrent(t *target, in *inputFlags) (confdiff.Value, error) {
	current, err := a.decode(*t, in, in.current)
	if err != nil {
		return confdiff.Value{}, err
	}
	if t.shape == confdiff.KindNull && !current.IsNull() {
		t.shape = current.Kind()
	}
	return current, nil
}

// load returns the current document and the merged desired document.
func (a *app) load(t *target, in *inputFlags) (current, desired confdiff.Value, err error) {
	if current, err = a.loadCurrent(t, in); err != nil {
		return
	}
	stack, err := a.desiredStack(*t, in)
	if err != nil {
		return
	}
	desired, err = stack.Merge()
	return
}
