package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-omegaloops/internal/database"
	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/models"
	"go-omegaloops/internal/uploader"
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload an .mp3 or .mp4 sample to IPFS",
	Long: `Validates FILE (at most 100 MiB, .mp3 or .mp4) and pins it with Pinata,
showing upload progress. The resulting CID is printed together with its
gateway URL and recorded in the local upload journal.

Uploads are never retried automatically: every upload creates a new pin.
A file that the journal already knows is only uploaded again after
confirmation or with --yes.`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().BoolP("yes", "y", false, "Upload again without asking when the file was pinned before")
}

func runUpload(cmd *cobra.Command, args []string) error {
	path := args[0]
	yes, _ := cmd.Flags().GetBool("yes")
	out := cmd.OutOrStdout()

	asset, f, err := uploader.OpenAsset(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := uploader.Validate(asset); err != nil {
		return err
	}

	fingerprint, err := helpers.FingerprintFile(path)
	if err != nil {
		return err
	}
	db, err := openJournal()
	if err != nil {
		return err
	}
	defer db.Close()

	if prev, err := db.FindByFingerprint(fingerprint); err == nil {
		fmt.Fprintf(out, "%s was already pinned as %s on %s.\n", asset.Name, prev.CID, prev.UploadedAt.Format("2006-01-02 15:04"))
		if !yes && !confirm(cmd.InOrStdin(), out, "Upload it again (creates a second pin)?") {
			fmt.Fprintf(out, "CID: %s\nURL: %s\n", prev.CID, newPinataClient().GatewayURL(prev.CID))
			return nil
		}
	} else if !errors.Is(err, database.ErrNotFound) {
		log.WithError(err).Warn("Could not read upload journal")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cid, err := pinWithProgress(ctx, cmd, asset)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "CID: %s\nURL: %s\n", cid, newPinataClient().GatewayURL(cid))

	if _, err := db.PutEntry(models.JournalEntry{
		Fingerprint: fingerprint,
		FileName:    asset.Name,
		MediaType:   asset.MediaType,
		Size:        asset.Size,
		CID:         cid,
	}); err != nil {
		return fmt.Errorf("pinned as %s but not recorded in the upload journal: %w", cid, err)
	}
	return nil
}

func pinWithProgress(ctx context.Context, cmd *cobra.Command, asset models.MediaAsset) (string, error) {
	progress := newProgressPrinter(cmd.OutOrStdout(), asset.Name)
	defer progress.stop()

	pipeline := uploader.NewPipeline(newPinataClient())
	return pipeline.Upload(ctx, asset, progress.update)
}
