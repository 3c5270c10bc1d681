package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/farmcart/farmcart/pkg/cli/internal/output"
	"github.com/farmcart/farmcart/pkg/config"
	"github.com/farmcart/farmcart/pkg/dispatch"
	"github.com/farmcart/farmcart/pkg/marketplace"
	"github.com/farmcart/farmcart/pkg/resource"
)

// resourceDefinitions returns one definition per resource any role can see,
// in a stable order. Only the shape matters here; paths are resolved again
// from the real config when a command runs.
func resourceDefinitions() []dispatch.Definition {
	seen := make(map[string]bool)
	var defs []dispatch.Definition
	for _, role := range config.Roles {
		for _, def := range marketplace.Definitions(config.Default(), role, nil) {
			if seen[def.Name] {
				continue
			}
			seen[def.Name] = true
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func newResourceCmd(g *globalFlags, def dispatch.Definition) *cobra.Command {
	name := def.Name
	cmd := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Manage %s", name),
	}

	if def.Supports(resource.FetchAll) {
		cmd.AddCommand(newListCmd(g, name))
	}
	if def.Supports(resource.FetchOne) {
		cmd.AddCommand(newGetCmd(g, def))
	}
	if def.Supports(resource.Create) {
		cmd.AddCommand(newCreateCmd(g, def))
	}
	if def.Supports(resource.Update) {
		cmd.AddCommand(newUpdateCmd(g, def))
	}
	if def.Supports(resource.Delete) {
		cmd.AddCommand(newDeleteCmd(g, def))
	}
	if def.Supports(resource.SetPrimary) {
		cmd.AddCommand(newSetPrimaryCmd(g, def))
	}
	if def.Supports(resource.ChangeStatus) {
		cmd.AddCommand(newStatusCmd(g, def))
	}
	return cmd
}

func newListCmd(g *globalFlags, name string) *cobra.Command {
	var (
		where   string
		filters []string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", name),
		Example: fmt.Sprintf(`  farmcart %[1]s list
  farmcart %[1]s list --filter status=pending
  farmcart %[1]s list --where 'total > 10'`, name),
		Args: cobra.NoArgs,
		RunE: withApp(g, func(cmd *cobra.Command, a *app, _ []string) error {
			query, err := parsePairs(filters)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			res, err := a.market.FetchAll(ctx, name, query)
			if err := a.settle(ctx, name, resource.FetchAll, res, err); err != nil {
				return err
			}
			items, err := resource.Filter(a.market.Select(name).Items, where)
			if err != nil {
				return err
			}
			return a.printEntities(items)
		}),
	}
	cmd.Flags().StringVar(&where, "where", "", "Filter expression evaluated locally, e.g. 'status == \"pending\"'")
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "Query parameter sent to the API (key=value, repeatable)")
	return cmd
}

func newGetCmd(g *globalFlags, def dispatch.Definition) *cobra.Command {
	name := def.Name
	use, args := "get <id>", cobra.ExactArgs(1)
	if !routeNeedsID(def, resource.FetchOne) {
		use, args = "get", cobra.NoArgs
	}
	return &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Show one of %s", name),
		Args:  args,
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			res, err := a.market.FetchOne(ctx, name, idArg(args))
			if err := a.settle(ctx, name, resource.FetchOne, res, err); err != nil {
				return err
			}
			sel := a.market.Select(name).Selected
			if sel == nil {
				return fmt.Errorf("%s: nothing returned", name)
			}
			return a.printEntity(*sel)
		}),
	}
}

type payloadFlags struct {
	data string
	sets []string
}

func (p *payloadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.data, "data", "d", "", "Request body as JSON or YAML")
	cmd.Flags().StringArrayVar(&p.sets, "set", nil, "Field to send (key=value, repeatable; values are typed like YAML)")
}

func (p *payloadFlags) payload() (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(p.data) != "" {
		if err := yaml.Unmarshal([]byte(p.data), &out); err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
	}
	for _, kv := range p.sets {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", kv)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
			v = raw
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("nothing to send: use --data or --set")
	}
	return out, nil
}

func newCreateCmd(g *globalFlags, def dispatch.Definition) *cobra.Command {
	name := def.Name
	var p payloadFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: fmt.Sprintf("Create one of %s", name),
		Args:  cobra.NoArgs,
		RunE: withApp(g, func(cmd *cobra.Command, a *app, _ []string) error {
			payload, err := p.payload()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			var res *dispatch.Result
			if name == marketplace.Addresses {
				_, res, err = a.market.SubmitAddress(ctx, marketplace.Viewing().BeginAdd(), payload)
			} else {
				res, err = a.market.Create(ctx, name, payload)
			}
			if err := a.settle(ctx, name, resource.Create, res, err); err != nil {
				return err
			}
			return a.printResult(res)
		}),
	}
	p.register(cmd)
	return cmd
}

func newUpdateCmd(g *globalFlags, def dispatch.Definition) *cobra.Command {
	name := def.Name
	var p payloadFlags
	use, args := "update <id>", cobra.ExactArgs(1)
	if !routeNeedsID(def, resource.Update) {
		use, args = "update", cobra.NoArgs
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: fmt.Sprintf("Update one of %s", name),
		Args:  args,
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			payload, err := p.payload()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.prefetch(ctx, def); err != nil {
				return err
			}
			id := idArg(args)
			var res *dispatch.Result
			if name == marketplace.Addresses {
				_, res, err = a.market.SubmitAddress(ctx, marketplace.Viewing().BeginEdit(id), payload)
			} else {
				res, err = a.market.Update(ctx, name, id, payload)
			}
			if err := a.settle(ctx, name, resource.Update, res, err); err != nil {
				return err
			}
			return a.printResult(res)
		}),
	}
	p.register(cmd)
	return cmd
}

func newDeleteCmd(g *globalFlags, def dispatch.Definition) *cobra.Command {
	name := def.Name
	return &cobra.Command{
		Use:   "delete <id>",
		Short: fmt.Sprintf("Delete one of %s", name),
		Args:  cobra.ExactArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if err := a.prefetch(ctx, def); err != nil {
				return err
			}
			res, err := a.market.Delete(ctx, name, idArg(args))
			if err := a.settle(ctx, name, resource.Delete, res, err); err != nil {
				return err
			}
			if a.json {
				return output.JSON(a.out, map[string]any{"deleted": args[0]})
			}
			return nil
		}),
	}
}

func newSetPrimaryCmd(g *globalFlags, def dispatch.Definition) *cobra.Command {
	name := def.Name
	return &cobra.Command{
		Use:   "set-primary <id>",
		Short: fmt.Sprintf("Mark one of %s as primary", name),
		Args:  cobra.ExactArgs(1),
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if err := a.prefetch(ctx, def); err != nil {
				return err
			}
			res, err := a.market.Dispatch(ctx, dispatch.Operation{
				Resource: name,
				Category: resource.SetPrimary,
				ID:       idArg(args),
			})
			if err := a.settle(ctx, name, resource.SetPrimary, res, err); err != nil {
				return err
			}
			return a.printEntities(a.market.Select(name).Items)
		}),
	}
}

func newStatusCmd(g *globalFlags, def dispatch.Definition) *cobra.Command {
	name := def.Name
	return &cobra.Command{
		Use:     "status <id> <status>",
		Short:   fmt.Sprintf("Change the status of one of %s", name),
		Example: fmt.Sprintf("  farmcart %s status 12 shipped", name),
		Args:    cobra.ExactArgs(2),
		RunE: withApp(g, func(cmd *cobra.Command, a *app, args []string) error {
			ctx := cmd.Context()
			if err := a.prefetch(ctx, def); err != nil {
				return err
			}
			res, err := a.market.ChangeStatus(ctx, name, idArg(args), args[1])
			if err := a.settle(ctx, name, resource.ChangeStatus, res, err); err != nil {
				return err
			}
			return a.printResult(res)
		}),
	}
}

// prefetch loads the collection so local rules like the last-entity guard
// see the current items.
func (a *app) prefetch(ctx context.Context, def dispatch.Definition) error {
	if !def.Supports(resource.FetchAll) {
		return nil
	}
	res, err := a.market.FetchAll(ctx, def.Name, nil)
	return a.settle(ctx, def.Name, resource.FetchAll, res, err)
}

func routeNeedsID(def dispatch.Definition, cat resource.Category) bool {
	r, err := def.Route(cat)
	return err == nil && strings.Contains(r.Path, "{id}")
}

func idArg(args []string) resource.ID {
	if len(args) == 0 {
		return resource.ID{}
	}
	return resource.ParseID(args[0])
}

func parsePairs(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	q := url.Values{}
	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --filter %q: expected key=value", kv)
		}
		q.Add(key, value)
	}
	return q, nil
}

func (a *app) printResult(res *dispatch.Result) error {
	if res == nil || res.Entity == nil {
		return nil
	}
	return a.printEntity(*res.Entity)
}

func (a *app) printEntity(e resource.Entity) error {
	if a.json {
		return output.JSON(a.out, e)
	}
	return writeEntities(a.out, []resource.Entity{e})
}

func (a *app) printEntities(items []resource.Entity) error {
	if a.json {
		if items == nil {
			items = []resource.Entity{}
		}
		return output.JSON(a.out, items)
	}
	if len(items) == 0 {
		fmt.Fprintln(a.out, "No results.")
		return nil
	}
	return writeEntities(a.out, items)
}

// writeEntities prints an ID column followed by the union of field names.
func writeEntities(w io.Writer, items []resource.Entity) error {
	keys := map[string]bool{}
	for _, e := range items {
		for k := range e.Fields {
			keys[k] = true
		}
	}
	cols := make([]string, 0, len(keys))
	for k := range keys {
		cols = append(cols, k)
	}
	sort.Strings(cols)

	tw := output.Table(w)
	header := append([]string{"ID"}, upper(cols)...)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, e := range items {
		row := make([]string, 0, len(cols)+1)
		row = append(row, e.ID.String())
		for _, c := range cols {
			row = append(row, cell(e.Fields[c]))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func upper(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = strings.ToUpper(c)
	}
	return out
}

func cell(v any) string {
	switch v := v.(type) {
	case nil:
		return "-"
	case string:
		return v
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}
