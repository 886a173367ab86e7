package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samsamfire/objdictgen/pkg/jsonod"
	"github.com/samsamfire/objdictgen/pkg/od"
	"github.com/samsamfire/objdictgen/pkg/profile"
	"github.com/spf13/cobra"
)

func (a *app) convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert an object dictionary to another format",
		Long: `Convert reads IN and writes OUT, the formats being chosen by extension:
.json, .jsonc, .yaml, .yml or .toml. OUT may also be an .eds file.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := readNode(args[0])
			if err != nil {
				return err
			}
			if name := a.config.GetString("convert.profile"); name != "" {
				if err := profile.Apply(node, name, a.profileDirs()...); err != nil {
					return err
				}
			}
			return writeNode(node, args[1], jsonod.Options{
				Sort:     a.config.GetBool("convert.sort"),
				OmitDate: a.config.GetBool("convert.no-date"),
				Comments: a.config.GetBool("convert.comments"),
			})
		},
	}
	flags := cmd.Flags()
	flags.Bool("sort", false, "sort the objects by index")
	flags.Bool("no-date", false, "leave out the generation date")
	flags.Bool("comments", false, "add the decimal index after each index (JSON output)")
	flags.String("profile", "", "install a profile before writing")
	for _, name := range []string{"sort", "no-date", "comments", "profile"} {
		_ = a.config.BindPFlag("convert."+name, flags.Lookup(name))
	}
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	var fix bool
	var output string
	cmd := &cobra.Command{
		Use:   "validate IN",
		Short: "Check an object dictionary",
		Long: `Validate checks every object of IN. With --fix, the repairable findings
are fixed and reported as warnings, and the result can be written with -o.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := readNodeWith(args[0], jsonod.Decoder{Repair: fix})
			if err != nil {
				return err
			}
			warnings, err := node.Validate(fix)
			for _, warning := range warnings {
				a.printf("warning: %v\n", warning)
			}
			if err != nil {
				return err
			}
			a.printf("%v: OK\n", args[0])
			if output != "" {
				return writeNode(node, output, jsonod.Options{})
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "repair the fixable findings")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the validated dictionary to this file")
	return cmd
}

func (a *app) diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff A B",
		Short: "Compare two object dictionaries",
		Long:  "Diff lists the differences between A and B. The exit status is 1 when they differ.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeA, err := readNode(args[0])
			if err != nil {
				return err
			}
			nodeB, err := readNode(args[1])
			if err != nil {
				return err
			}
			changes, err := jsonod.Diff(nodeA, nodeB)
			if err != nil {
				return err
			}
			for _, change := range changes {
				a.printf("%v\n", change)
			}
			if len(changes) > 0 {
				return &exitError{code: 1}
			}
			a.printf("no differences\n")
			return nil
		},
	}
}

func parseIndexFlag(raw string) (uint16, error) {
	index, err := strconv.ParseUint(raw, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", raw)
	}
	return uint16(index), nil
}

func (a *app) listCmd() *cobra.Command {
	var indexes []string
	var compute bool
	cmd := &cobra.Command{
		Use:   "list IN",
		Short: "List the objects of an object dictionary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, err := readNode(args[0])
			if err != nil {
				return err
			}
			a.printf("%v\n", node)
			if len(indexes) == 0 {
				for _, index := range node.GetAllParameters(true) {
					if err := a.printEntry(node, index, compute, false); err != nil {
						return err
					}
				}
				return nil
			}
			for _, raw := range indexes {
				index, err := parseIndexFlag(raw)
				if err != nil {
					return err
				}
				if err := a.printEntry(node, index, compute, true); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&indexes, "index", nil, "show the subindexes of this index, can be repeated")
	cmd.Flags().BoolVar(&compute, "compute", false, "expand templated names and $NODEID values")
	return cmd
}

func (a *app) printEntry(node *od.Node, index uint16, compute bool, details bool) error {
	name, err := node.GetEntryName(index, compute)
	if err != nil {
		return err
	}
	flags := node.GetEntryFlags(index)
	a.printf("0x%04X  %-40s %v\n", index, name, strings.Join(flags, ","))
	if !details {
		return nil
	}
	if _, ok := node.Dictionary[index]; !ok {
		return nil
	}
	subs, err := node.GetAllSubentryInfos(index, compute)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		subName := ""
		if sub.Infos != nil {
			subName = sub.Infos.Name
		}
		a.printf("  %3d  %-38s %v", sub.Subindex, subName, od.FormatValue(sub.Value, 16))
		if sub.Params.Comment != "" {
			a.printf("  # %v", sub.Params.Comment)
		}
		a.printf("\n")
	}
	return nil
}

func (a *app) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile [NAME]",
		Short: "List the available profiles, or the objects of one profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, name := range profile.Available(a.profileDirs()...) {
					a.printf("%v\n", name)
				}
				return nil
			}
			p, err := profile.Find(args[0], a.profileDirs()...)
			if err != nil {
				return err
			}
			a.printf("%v: %v\n", p.Name, p.Description)
			for _, index := range p.Mapping.Indexes() {
				def := p.Mapping[index]
				a.printf("0x%04X  %-40s %v\n", index, def.Name, def.Struct)
			}
			for _, menu := range p.Menus {
				names := []string{}
				for _, index := range menu.Indexes {
					names = append(names, fmt.Sprintf("0x%04X", index))
				}
				a.printf("menu %q: %v\n", menu.Name, strings.Join(names, " "))
			}
			return nil
		},
	}
}
