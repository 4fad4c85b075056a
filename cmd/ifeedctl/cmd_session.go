// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/AleutianAI/ifeed/pkg/ux"
	"github.com/AleutianAI/ifeed/services/labeling/datatypes"
	"github.com/AleutianAI/ifeed/services/labeling/inference"
	"github.com/AleutianAI/ifeed/services/labeling/sessions"
	"github.com/spf13/cobra"
)

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// newStatusCmd shows the progress of a session and, with --compare, its
// agreement with another session of the same setup.
//
// # Examples
//
//	ifeedctl status 12
//	ifeedctl status 12 --compare 13 --json
func newStatusCmd(a *app) *cobra.Command {
	var (
		compareWith int64
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "status <session-id>",
		Short: "Show the progress of a labeling session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			svc := sessions.NewService(store, nil, nil)
			progress, err := svc.Progress(cmd.Context(), id)
			if err != nil {
				return err
			}
			var cmp *datatypes.Comparison
			if compareWith > 0 {
				c, err := svc.Compare(cmd.Context(), id, compareWith)
				if err != nil {
					return err
				}
				cmp = &c
			}

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(struct {
					Progress   datatypes.Progress    `json:"progress"`
					Comparison *datatypes.Comparison `json:"comparison,omitempty"`
				}{progress, cmp})
			}

			p := ux.NewPrinter(cmd.OutOrStdout())
			p.Title(progress.Name)
			p.KeyValues([][2]string{
				{"status", string(progress.Status)},
				{"iteration", p.ProgressBar(progress.Iteration, progress.Iterations, 30)},
				{"percent", strconv.Itoa(progress.Percent)},
				{"pauses", strconv.Itoa(progress.Pauses)},
				{"rewinds", strconv.Itoa(progress.Rewinds)},
			})
			if cmp != nil {
				p.Title(fmt.Sprintf("Compared with session %d", cmp.SessionB))
				p.KeyValues([][2]string{
					{"rows", strconv.Itoa(cmp.Rows)},
					{"both inlier", strconv.Itoa(cmp.InlierInlier)},
					{"both outlier", strconv.Itoa(cmp.OutlierOutlier)},
					{"inlier/outlier", strconv.Itoa(cmp.InlierOutlier)},
					{"outlier/inlier", strconv.Itoa(cmp.OutlierInlier)},
					{"agreement", strconv.FormatFloat(cmp.Agreement, 'g', -1, 64)},
					{"kappa", strconv.FormatFloat(cmp.Kappa, 'g', -1, 64)},
				})
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&compareWith, "compare", 0, "id of a second session of the same setup")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

// newEvaluateCmd runs an evaluate action against the configured engine.
// For a session the global prediction is stored exactly as the server
// would; a setup preview stores nothing.
func newEvaluateCmd(a *app) *cobra.Command {
	var (
		setupID   int64
		engineURL string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate [session-id]",
		Short: "Ask the inference engine about a session or preview a setup",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (setupID > 0) {
				return errors.New("pass exactly one of a session id or --setup")
			}
			gw := a.config.GatewayConfig()
			if engineURL != "" {
				gw.URL = engineURL
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			svc := inference.NewService(store, inference.NewHTTPGateway(gw, nil), nil)
			var eval inference.Evaluation
			if setupID > 0 {
				eval, err = svc.EvaluateSetup(cmd.Context(), setupID)
			} else {
				var id int64
				if id, err = parseID(args[0]); err != nil {
					return err
				}
				eval, err = svc.EvaluateSession(cmd.Context(), id)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(eval)
			}
			printEvaluation(ux.NewPrinter(cmd.OutOrStdout()), eval)
			return nil
		},
	}
	cmd.Flags().Int64Var(&setupID, "setup", 0, "preview a setup instead of a session")
	cmd.Flags().StringVar(&engineURL, "engine-url", "", "inference engine endpoint (overrides configuration)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the evaluation as JSON")
	return cmd
}

func printEvaluation(p *ux.Printer, eval inference.Evaluation) {
	if eval.SessionID > 0 {
		p.Title(fmt.Sprintf("Session %d", eval.SessionID))
	} else {
		p.Title(fmt.Sprintf("Setup %d preview", eval.SetupID))
	}
	if !eval.PredictionApplied {
		p.Warning("engine returned no prediction_global")
	}

	counts := map[string]int{}
	for _, token := range eval.FinalLabels.Tokens() {
		counts[token]++
	}
	rows := make([][2]string, 0, len(counts)+1)
	for _, token := range []string{"inlier", "outlier"} {
		rows = append(rows, [2]string{"predicted " + token, fmt.Sprintf("%d %s", counts[token], p.Label(token))})
	}
	keys := make([]string, 0, len(eval.Engine))
	for k := range eval.Engine {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	rows = append(rows, [2]string{"engine fields", strings.Join(keys, ", ")})
	p.KeyValues(rows)
}
