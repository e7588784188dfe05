package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mahara/pieform/pkg/model"
	"github.com/mahara/pieform/pkg/openapi"
	"github.com/mahara/pieform/pkg/orchestrator"
	"github.com/mahara/pieform/pkg/render"
	"github.com/mahara/pieform/pkg/renderers/html"
)

var (
	openapiOperation string
	openapiRender    bool
	openapiValidate  bool
	openapiExternal  bool
	openapiTimeout   time.Duration
)

var openapiCmd = &cobra.Command{
	Use:   "openapi [source]",
	Short: "Generate form descriptors from an OpenAPI document",
	Long: `Reads an OpenAPI 3 document from a file or an http(s) URL.

Without --operation the operations are listed. With --operation the request
body of that operation is printed as a descriptor document that "pieform lint"
and "pieform render --forms" accept, or rendered as HTML with --render.

Example:
  pieform openapi api.yaml --operation createUser > forms/users.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runOpenAPI,
}

func init() {
	openapiCmd.Flags().StringVarP(&openapiOperation, "operation", "o", "", "operation id to convert")
	openapiCmd.Flags().BoolVar(&openapiRender, "render", false, "render the form as HTML instead of printing the descriptor")
	openapiCmd.Flags().BoolVar(&openapiValidate, "validate", false, "validate the document before converting")
	openapiCmd.Flags().BoolVar(&openapiExternal, "external-refs", false, "resolve external $ref targets")
	openapiCmd.Flags().DurationVar(&openapiTimeout, "timeout", 30*time.Second, "timeout for http(s) sources")
}

func runOpenAPI(cmd *cobra.Command, args []string) error {
	src, err := openapi.ParseSource(args[0])
	if err != nil {
		return err
	}

	htmlRenderer, err := html.New()
	if err != nil {
		return err
	}
	registry, err := render.NewRegistry(htmlRenderer)
	if err != nil {
		return err
	}
	o := orchestrator.New(
		orchestrator.WithRegistry(registry),
		orchestrator.WithLoaderOptions(openapi.WithHTTPFallback(openapiTimeout)),
		orchestrator.WithConvertOptions(openapi.Options{
			AllowExternalRefs: openapiExternal,
			Validate:          openapiValidate,
		}),
	)
	req := orchestrator.Request{Source: src, OperationID: openapiOperation}
	out := cmd.OutOrStdout()

	if openapiOperation == "" {
		ops, err := o.Operations(cmd.Context(), req)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "OPERATION\tMETHOD\tPATH\tBODY\tSUMMARY")
		for _, op := range ops {
			body := "-"
			if op.HasBody {
				body = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", op.ID, op.Method, op.Path, body, op.Summary)
		}
		return tw.Flush()
	}

	if openapiRender {
		desc, err := o.Descriptor(cmd.Context(), req)
		if err != nil {
			return err
		}
		rendered, err := registry.Render(cmd.Context(), html.Name, desc, render.RenderOptions{
			Hidden: render.SubmissionFields(desc, "", nil),
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(rendered))
		return err
	}

	c, err := o.Config(cmd.Context(), req)
	if err != nil {
		return err
	}
	if _, err := model.Build(c); err != nil {
		return fmt.Errorf("generated descriptor does not build: %w", err)
	}
	encoded, err := yaml.Marshal(map[string]model.Config{c.Name: c})
	if err != nil {
		return err
	}
	_, err = out.Write(encoded)
	return err
}
