package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/joblens/internal/embedcache"
	"github.com/spigell/joblens/internal/logger"
	"github.com/spigell/joblens/internal/matching"
)

const (
	providerService = "service"
	providerGemini  = "gemini"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Manage the CV embedding used for matching",
}

var embedCVCmd = &cobra.Command{
	Use:   "cv <file>",
	Short: "Embed a CV and keep the vector for later matches",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		embedCV(cmd, args[0])
	},
}

var embedForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Delete the stored CV embedding",
	Run: func(_ *cobra.Command, _ []string) {
		embedForget()
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.AddCommand(embedCVCmd, embedForgetCmd)

	embedCVCmd.Flags().StringP("provider", "p", providerService, "embedding provider: service (any document the embedder accepts) or gemini (plain text only)")
}

func embedCV(cmd *cobra.Command, path string) {
	e := newEnv()
	sess := e.session()

	provider, _ := cmd.Flags().GetString("provider")

	var (
		vector []float64
		source string
	)

	switch strings.ToLower(strings.TrimSpace(provider)) {
	case providerService:
		f, err := os.Open(path)
		if err != nil {
			e.logger.Fatal("opening cv", zap.Error(err))
		}
		defer f.Close()

		e.logger.Info("uploading cv", zap.String("file", filepath.Base(path)))

		vector, err = e.embedder(sess.AccessToken).EmbedCV(e.ctx, path, f)
		if err != nil {
			e.logger.Fatal("embedding cv", zap.Error(err))
		}
		source = embedcache.SourceService
	case providerGemini:
		data, err := os.ReadFile(path)
		if err != nil {
			e.logger.Fatal("reading cv", zap.Error(err))
		}
		if !utf8.Valid(data) {
			e.logger.Fatal("cv is not plain text", zap.String("hint", "use --provider service for PDF or DOCX files"))
		}

		vector, err = e.textEmbedder(provider, sess.AccessToken).Embed(e.ctx, string(data))
		if err != nil {
			e.logger.Fatal("embedding cv", zap.Error(err))
		}
		source = embedcache.SourceGemini
	default:
		e.logger.Fatal("unsupported embedding provider", zap.String("provider", provider))
	}

	if len(vector) != matching.Dimensions {
		e.logger.Fatal("embedding has unexpected length",
			zap.Int("dimensions", len(vector)),
			zap.Int("expected", matching.Dimensions),
		)
	}

	cache := e.embeddings()
	defer cache.Close()

	if err := cache.Put(e.ctx, sess.UserID, vector, source); err != nil {
		e.logger.Fatal("storing embedding", zap.Error(err))
	}

	e.logger.Info("cv embedded", logger.UserField(sess.UserID), zap.String("source", source), zap.Int("dimensions", len(vector)))
}

func embedForget() {
	e := newEnv()
	sess := e.session()

	cache := e.embeddings()
	defer cache.Close()

	if err := cache.Delete(e.ctx, sess.UserID); err != nil {
		e.logger.Fatal("deleting embedding", zap.Error(err))
	}

	e.logger.Info("embedding deleted")
}
