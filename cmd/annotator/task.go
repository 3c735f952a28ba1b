package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"annotation-service/internal/entity"
	"annotation-service/internal/service"
)

func newTaskCommand(cc *commandContext) *cobra.Command {
	var caller string
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage annotation tasks",
	}
	cmd.PersistentFlags().StringVar(&caller, "as", "admin", "Admin user performing the operation")

	cmd.AddCommand(newTaskCreateCommand(cc, &caller))
	cmd.AddCommand(newTaskDeleteCommand(cc, &caller))
	cmd.AddCommand(newTaskResultsCommand(cc))
	return cmd
}

func newTaskCreateCommand(cc *commandContext, caller *string) *cobra.Command {
	var (
		datasetPath string
		dataType    string
		schema      string
	)
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a task over a dataset directory (resumes an interrupted create)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			req := service.CreateTaskRequest{
				Name:    args[0],
				Dataset: entity.DatasetSpec{Path: datasetPath},
				Spec:    service.SpecRequest{DataType: dataType},
			}
			if schema != "" {
				req.Spec.LabelSchema = json.RawMessage(schema)
			}
			task, err := a.tasks.Create(cmd.Context(), *caller, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s created (dataset %s, spec %s)\n", task.Name, task.DatasetID, task.SpecID)
			return nil
		},
	}
	cmd.Flags().StringVar(&datasetPath, "dataset", "", "Dataset directory, relative to datasets.root")
	cmd.Flags().StringVar(&dataType, "data-type", "image", "Data type of the items")
	cmd.Flags().StringVar(&schema, "label-schema", "", "Label schema as a JSON document")
	_ = cmd.MarkFlagRequired("dataset")
	return cmd
}

func newTaskDeleteCommand(cc *commandContext, caller *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a task with its jobs, results and labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.tasks.Delete(cmd.Context(), *caller, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s deleted\n", args[0])
			return nil
		},
	}
}

func newTaskResultsCommand(cc *commandContext) *cobra.Command {
	var (
		page     int
		pageSize int
		filters  map[string]string
	)
	cmd := &cobra.Command{
		Use:   "results <name>",
		Short: "List the results of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			f, err := service.ParseFilters(filters)
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.results.List(cmd.Context(), args[0], page, pageSize, f)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(res.Items))
			for _, item := range res.Items {
				rows = append(rows, []string{
					item.DataID,
					string(item.Status),
					item.Annotator,
					item.Validator,
					yesNo(item.InProgress),
					(time.Duration(item.CumulatedTime) * time.Millisecond).String(),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Data", "Status", "Annotator", "Validator", "In progress", "Time"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			))
			fmt.Fprintf(out, "%d matching", res.Total)
			for _, status := range entity.AllStatuses() {
				fmt.Fprintf(out, "  %s=%s", status, strconv.Itoa(res.Counts[status]))
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "Page number, starting at 0")
	cmd.Flags().IntVar(&pageSize, "page-size", service.DefaultPageSize, "Results per page")
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "Filter as field=value, alternatives separated by ';'")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
