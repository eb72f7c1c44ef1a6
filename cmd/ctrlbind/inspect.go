package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vango-dev/ctrlbind/internal/demo"
	"github.com/vango-dev/ctrlbind/internal/errors"
	"github.com/vango-dev/ctrlbind/pkg/controller"
)

// handlerInfo is the printed form of a handler slot.
type handlerInfo struct {
	Element string `json:"element"`
	Event   string `json:"event"`
	Member  string `json:"member"`
	Params  int    `json:"params"`
	Async   bool   `json:"async,omitempty"`
}

// controllerInfo is the printed form of a descriptor.
type controllerInfo struct {
	Sample      string        `json:"sample"`
	Controller  string        `json:"controller"`
	Key         string        `json:"key,omitempty"`
	DataContext string        `json:"dataContext,omitempty"`
	Elements    []string      `json:"elements,omitempty"`
	Handlers    []handlerInfo `json:"handlers,omitempty"`
	Problems    []string      `json:"problems,omitempty"`
}

func inspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect [sample...]",
		Short: "Print the binding metadata of sample controllers",
		Long: `Print the binding key, data context slot, element slots and
handlers discovered on the sample controllers.

Examples:
  ctrlbind inspect
  ctrlbind inspect todo --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = demo.Names()
			}
			var infos []controllerInfo
			for _, name := range args {
				info, err := inspectSample(name)
				if err != nil {
					return err
				}
				infos = append(infos, info)
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			for _, info := range infos {
				printInfo(cmd.OutOrStdout(), info)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

func inspectSample(name string) (controllerInfo, error) {
	s, err := demo.Lookup(name)
	if err != nil {
		return controllerInfo{}, errors.New("C200").Wrap(err)
	}
	reg := controller.NewRegistry()
	r := reg.Add(s.Controller, controller.Key(s.Key))
	d, err := controller.Describe(s.Controller, r)
	if err != nil {
		return controllerInfo{}, err
	}

	info := controllerInfo{Sample: s.Name, Controller: d.Name(), Key: d.Key}
	if d.DataContext != nil {
		info.DataContext = fmt.Sprintf("%s %s", d.DataContext.Member, d.DataContext.Type)
	}
	for _, el := range d.Elements {
		info.Elements = append(info.Elements, fmt.Sprintf("%s (%s %s)", el.Name, el.Member, el.Type))
	}
	for _, h := range d.Handlers {
		info.Handlers = append(info.Handlers, handlerInfo{
			Element: h.Element,
			Event:   h.Event,
			Member:  h.Member,
			Params:  h.NumParams(),
			Async:   h.Async,
		})
	}
	for _, p := range d.Problems {
		info.Problems = append(info.Problems, p.Error())
	}
	return info, nil
}

func printInfo(w io.Writer, info controllerInfo) {
	fmt.Fprintf(w, "%s  %s\n", info.Sample, info.Controller)
	fmt.Fprintf(w, "  key:          %s\n", info.Key)
	if info.DataContext != "" {
		fmt.Fprintf(w, "  data context: %s\n", info.DataContext)
	}
	for _, el := range info.Elements {
		fmt.Fprintf(w, "  element:      %s\n", el)
	}
	for _, h := range info.Handlers {
		async := ""
		if h.Async {
			async = " async"
		}
		fmt.Fprintf(w, "  handler:      %s.%s -> %s (%d params%s)\n", h.Element, h.Event, h.Member, h.Params, async)
	}
	for _, p := range info.Problems {
		fmt.Fprintf(w, "  skipped:      %s\n", p)
	}
	fmt.Fprintln(w)
}
