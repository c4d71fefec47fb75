package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AnTengye/rollingquote/app"
	"github.com/AnTengye/rollingquote/config"
	"github.com/AnTengye/rollingquote/model"
)

type priceOptions struct {
	pairs      []string
	words      int
	subject    string
	turnaround string
	certified  bool
	ratesFile  string
	rounding   string
}

func newPriceCmd(root *rootOptions) *cobra.Command {
	opts := &priceOptions{}
	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price a word count for one or more language pairs",
		Long: `Price applies the pricing schedule to a word count.

Examples:
  quotectl price --words 1000 --pair english:french
  quotectl price --words 2500 --pair en:de --pair en:ja --subject legal --turnaround 24h --certified
  quotectl price --rates rates.yaml --words 300 --pair english:spanish`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrice(cmd, root, opts)
		},
	}
	cmd.Flags().StringArrayVar(&opts.pairs, "pair", nil, "Language pair as source:target (repeatable)")
	cmd.Flags().IntVar(&opts.words, "words", 0, "Word count")
	cmd.Flags().StringVar(&opts.subject, "subject", "", "Subject: general, technical, marketing, legal or medical")
	cmd.Flags().StringVar(&opts.turnaround, "turnaround", "", "Turnaround: standard, 2bd or 24h")
	cmd.Flags().BoolVar(&opts.certified, "certified", false, "Certified translation")
	cmd.Flags().StringVar(&opts.ratesFile, "rates", "", "Pricing schedule YAML (overrides the config)")
	cmd.Flags().StringVar(&opts.rounding, "rounding", "", "Rounding: half_up or half_even")
	_ = cmd.MarkFlagRequired("pair")
	return cmd
}

func runPrice(cmd *cobra.Command, root *rootOptions, opts *priceOptions) error {
	var pc config.PricingConfig
	if root.configPath != "" {
		cfg, err := root.load()
		if err != nil {
			return err
		}
		pc = cfg.Pricing
	}
	if opts.ratesFile != "" {
		pc.RatesFile = opts.ratesFile
	}
	if opts.rounding != "" {
		pc.Rounding = opts.rounding
	}

	engine, err := app.Engine(pc)
	if err != nil {
		return err
	}

	pairs, err := parsePairs(opts.pairs)
	if err != nil {
		return err
	}
	total, lines, err := engine.PriceForOrder(opts.words, pairs, model.QuoteOptions{
		Subject:    model.Subject(opts.subject),
		Turnaround: model.Turnaround(opts.turnaround),
		Certified:  opts.certified,
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, l := range lines {
		fmt.Fprintf(w, "%s\t%s\n", l.Pair, money(l.AmountCents, engine.Currency()))
	}
	fmt.Fprintf(w, "total (%d words)\t%s\n", opts.words, money(total, engine.Currency()))
	return w.Flush()
}

func parsePairs(raw []string) ([]model.LanguagePair, error) {
	pairs := make([]model.LanguagePair, 0, len(raw))
	for _, r := range raw {
		source, target, ok := strings.Cut(r, ":")
		if !ok || source == "" || target == "" {
			return nil, fmt.Errorf("invalid pair %q: want source:target", r)
		}
		pairs = append(pairs, model.LanguagePair{Source: source, Target: target})
	}
	return pairs, nil
}
