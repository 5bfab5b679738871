package main

import (
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	logLevel   string
	edges      string
	catalog    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "graphrec",
		Short:         "Graph-embedding recommender: train, publish and serve recommendations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "YAML config file (or GRAPHREC_CONFIG)")
	pf.StringVar(&g.logLevel, "log-level", "", "override log.level")
	pf.StringVar(&g.edges, "edges", "", "override data.edges (CSV user,item[,weight])")
	pf.StringVar(&g.catalog, "catalog", "", "override data.catalog (YAML)")

	root.AddCommand(
		newTrainCmd(g),
		newRecommendCmd(g),
		newColdStartCmd(g),
		newExplainCmd(g),
		newScheduleCmd(g),
	)
	return root
}
