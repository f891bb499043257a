package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pixelsense/pixelsense/internal/classify"
	"github.com/pixelsense/pixelsense/internal/gemini"
	"github.com/pixelsense/pixelsense/internal/ollama"
	"github.com/pixelsense/pixelsense/internal/openai"
	"github.com/pixelsense/pixelsense/internal/providers"
	"github.com/pixelsense/pixelsense/internal/run"
)

const defaultTemperature = 0.2

func NewRootCmd() *cobra.Command {
	var (
		folder         string
		query          string
		autoCategorize bool
		output         string
		recursive      bool
		parallel       int
		sampleSize     int
		verbose        bool
		apiKey         string
		providerName   string
		model          string
		resultsFile    string
	)

	cmd := &cobra.Command{
		Use:   "pixelsense",
		Short: "Organize image folders with vision LLM classification",
		Long: `PixelSense sends each image in a folder to a vision-capable LLM and
organizes the collection from the judgments.

In query mode every image is matched against a free-text description and
matching images are copied to the output folder. In auto-categorize mode
a two-level category system is first discovered from a sample of the
collection, then every image is filed under its category path.`,
		Example: `  # Find images matching a description
  pixelsense --folder ./photos --query "a red car" --output ./matches

  # Discover categories and organize the whole collection
  pixelsense --folder ./photos --auto-categorize --output ./organized

  # More workers, bigger discovery sample, Gemini backend
  pixelsense -f ./photos -a -o ./organized -p 8 -s 40 --provider gemini`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			if verbose {
				slog.SetLogLoggerLevel(slog.LevelDebug)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if autoCategorize == (query != "") {
				return fmt.Errorf("exactly one of --query or --auto-categorize must be specified")
			}
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1")
			}
			if sampleSize < 1 {
				return fmt.Errorf("--sample-size must be at least 1")
			}

			provider, resolvedModel, err := buildProvider(providerName, apiKey, model)
			if err != nil {
				return err
			}

			return run.Execute(cmd.Context(), run.Options{
				RunID:          uuid.NewString(),
				Folder:         folder,
				Query:          query,
				AutoCategorize: autoCategorize,
				Output:         output,
				Recursive:      recursive,
				Parallel:       parallel,
				SampleSize:     sampleSize,
				Verbose:        verbose,
				ResultsFile:    resultsFile,
				Provider:       provider,
				Model:          resolvedModel,
				Temperature:    defaultTemperature,
				Retry:          classify.DefaultRetryConfig(),
			})
		},
	}

	cmd.Flags().StringVarP(&folder, "folder", "f", "", "Path to the folder containing images (required)")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Description to match against the images (not required with --auto-categorize)")
	cmd.Flags().BoolVarP(&autoCategorize, "auto-categorize", "a", false, "Discover categories and organize images automatically")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output folder for matching/categorized images")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Search recursively through subfolders")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", 4, "Number of parallel workers for processing")
	cmd.Flags().IntVarP(&sampleSize, "sample-size", "s", 20, "Number of images to sample for category discovery")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed results for each image")
	cmd.Flags().StringVarP(&apiKey, "api-key", "k", "", "API key (can also be set via the provider's environment variable)")
	cmd.Flags().StringVar(&providerName, "provider", "openai", "Vision LLM provider (openai, gemini, or ollama)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (defaults to the provider's default)")
	cmd.Flags().StringVar(&resultsFile, "results-file", "", "Write per-image results to this parquet file")

	_ = cmd.MarkFlagRequired("folder")

	return cmd
}

// buildProvider resolves the credential (flag takes precedence over the
// provider's environment variable) and the model, and constructs the
// provider. A missing credential is a fatal configuration error,
// reported before any network call.
func buildProvider(name, apiKey, model string) (providers.Provider, string, error) {
	switch name {
	case "openai":
		key := apiKey
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, "", fmt.Errorf("OpenAI API key not provided: use --api-key or set OPENAI_API_KEY")
		}
		return openai.New(key), resolveModel(model, "OPENAI_MODEL", "gpt-4o"), nil
	case "gemini":
		key := apiKey
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			return nil, "", fmt.Errorf("Gemini API key not provided: use --api-key or set GEMINI_API_KEY")
		}
		return gemini.New(key), resolveModel(model, "GEMINI_MODEL", "gemini-1.5-flash"), nil
	case "ollama":
		return ollama.New(os.Getenv("OLLAMA_URL")), resolveModel(model, "OLLAMA_MODEL", "llava"), nil
	default:
		return nil, "", fmt.Errorf("unsupported provider: %s (supported: openai, gemini, ollama)", name)
	}
}

func resolveModel(flagValue, envVar, fallback string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv(envVar); env != "" {
		return env
	}
	return fallback
}
