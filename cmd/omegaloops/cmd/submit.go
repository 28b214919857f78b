package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/ethereum/go-ethereum/core/types"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"go-omegaloops/internal/helpers"
	"go-omegaloops/internal/models"
	"go-omegaloops/internal/submission"
	"go-omegaloops/internal/uploader"
)

// receiptWaiter is implemented by ledgers connected to a chain.
type receiptWaiter interface {
	WaitMined(ctx context.Context, txHash string) (*types.Receipt, error)
}

var submitCmd = &cobra.Command{
	Use:   "submit [FILE]",
	Short: "Upload a sample and register it on the marketplace",
	Long: `Validates the form and FILE, uploads FILE to IPFS and calls createSample on
the marketplace contract with the resulting CID.

When the upload succeeded but the contract call failed, the CID is printed.
Run submit again with --cid (and without FILE) to register it without
uploading the file a second time.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	f := submitCmd.Flags()
	f.String("artist", "", "Artist name")
	f.String("title", "", "Sample title")
	f.String("category", "", "Leaf category, see 'omegaloops categories'")
	f.String("description", "", "Sample description")
	f.Uint64("copies", 0, "Number of copies (1-1000)")
	f.String("price", "", "Price per copy in ETH (0.01-1)")
	f.String("cid", "", "Register an already uploaded CID instead of uploading FILE")
	f.Bool("wait", false, "Wait until the transaction is mined")
}

func submissionFromFlags(cmd *cobra.Command) models.Submission {
	f := cmd.Flags()
	var sub models.Submission
	sub.Artist, _ = f.GetString("artist")
	sub.Title, _ = f.GetString("title")
	sub.Category, _ = f.GetString("category")
	sub.Description, _ = f.GetString("description")
	sub.NumberOfCopies, _ = f.GetUint64("copies")
	sub.PriceEth, _ = f.GetString("price")
	return sub
}

func runSubmit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	form := submissionFromFlags(cmd)
	cid, _ := cmd.Flags().GetString("cid")
	wait, _ := cmd.Flags().GetBool("wait")

	if cid == "" && len(args) == 0 {
		return errors.New("either FILE or --cid is required")
	}
	if cid != "" && len(args) > 0 {
		return errors.New("FILE and --cid are mutually exclusive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var req submission.Request
	if cid == "" {
		asset, f, err := uploader.OpenAsset(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		// Nothing is dialed or uploaded for an invalid form.
		if err := submission.Validate(form, asset); err != nil {
			return err
		}
		fingerprint, err := helpers.FingerprintFile(args[0])
		if err != nil {
			return err
		}
		req = submission.Request{Form: form, Asset: asset, Fingerprint: fingerprint}
	} else if err := submission.ValidateForm(form); err != nil {
		return err
	}

	l, closeLedger, err := ledgerDialer(ctx, globalConfig)
	if err != nil {
		return err
	}
	defer closeLedger()

	var txHash string
	if cid != "" {
		svc := submission.NewService(nil, l, nil)
		txHash, err = svc.Register(ctx, form, cid)
		if err != nil {
			return err
		}
	} else {
		db, err := openJournal()
		if err != nil {
			return err
		}
		defer db.Close()

		progress := newProgressPrinter(out, req.Asset.Name)
		svc := submission.NewService(uploader.NewPipeline(newPinataClient()), l, db)
		res, err := svc.Submit(ctx, req, progress.update)
		progress.stop()
		if err != nil {
			if res.CID != "" {
				fmt.Fprintf(out, "Uploaded as %s but not registered. Retry with: omegaloops submit --cid %s ...\n", res.CID, res.CID)
			}
			return err
		}
		cid, txHash = res.CID, res.TxHash
	}

	fmt.Fprintf(out, "CID: %s\nTransaction: %s\n", cid, txHash)

	if wait {
		waiter, ok := l.(receiptWaiter)
		if !ok {
			log.Warn("Ledger cannot wait for transactions, skipping --wait")
			return nil
		}
		receipt, err := waiter.WaitMined(ctx, txHash)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Mined in block %s\n", receipt.BlockNumber)
	}
	return nil
}
