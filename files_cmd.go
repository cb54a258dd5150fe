package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/szenti/b2go/internal/b2"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls <bucket>",
		Short: "List objects in a bucket",
		Args:  cobra.ExactArgs(1),
		RunE:  runLs,
	}
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <bucket> <local-path> [object-name]",
		Short: "Upload a file",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runPut,
	}

	cmd.Flags().String("content-type", "", "object content type (default: server-side detection)")
	cmd.Flags().StringArray("info", nil, "object metadata entry as key=value (repeatable, up to 10)")

	return cmd
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <bucket> <object-name> [local-path]",
		Short: "Download an object",
		Args:  cobra.RangeArgs(2, 3),
		RunE:  runGet,
	}

	cmd.Flags().Bool("overwrite", false, "replace an existing local file")
	cmd.Flags().Bool("keep-partial", false, "keep a partially-written file when the download fails")

	return cmd
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <bucket> <object-name>",
		Short: "Delete the latest version of an object",
		Args:  cobra.ExactArgs(2),
		RunE:  runRm,
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <file-id>",
		Short: "Show object details by file id",
		Args:  cobra.ExactArgs(1),
		RunE:  runStat,
	}
}

func newHideCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hide <bucket> <object-name>",
		Short: "Hide an object from listings without deleting its versions",
		Args:  cobra.ExactArgs(2),
		RunE:  runHide,
	}
}

func newVersionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions <bucket>",
		Short: "List all versions of all objects in a bucket",
		Args:  cobra.ExactArgs(1),
		RunE:  runVersions,
	}

	cmd.Flags().String("start-name", "", "start listing at this file name")
	cmd.Flags().String("start-id", "", "start listing at this file id")
	cmd.Flags().Int("count", 0, "maximum entries per page")

	return cmd
}

// resolveBucket maps a bucket name to its Bucket via the account listing.
func resolveBucket(ctx context.Context, client *b2.Client, name string) (*b2.Bucket, error) {
	buckets, err := client.ListBuckets(ctx)
	if err != nil {
		return nil, err
	}

	for i := range buckets {
		if buckets[i].Name == name {
			return &buckets[i], nil
		}
	}

	return nil, fmt.Errorf("bucket %q not found", name)
}

// findObject locates an object by name. The listing starts at the name
// itself, so a match is in the first entry or nowhere.
func findObject(ctx context.Context, client *b2.Client, bucket *b2.Bucket, name string) (*b2.Object, error) {
	page, err := client.ListObjects(ctx, bucket, b2.ListObjectsOptions{StartFileName: name, MaxFileCount: 1})
	if err != nil {
		return nil, err
	}

	if len(page.Objects) > 0 && page.Objects[0].Name == name {
		return &page.Objects[0], nil
	}

	return nil, fmt.Errorf("object %q not found in bucket %s", name, bucket.Name)
}

func runLs(cmd *cobra.Command, args []string) error {
	client, err := newDriverClient()
	if err != nil {
		return err
	}

	bucket, err := resolveBucket(cmd.Context(), client, args[0])
	if err != nil {
		return err
	}

	var rows [][]string

	// The driver returns one page at a time; loop the cursor here.
	opts := b2.ListObjectsOptions{}

	for {
		page, listErr := client.ListObjects(cmd.Context(), bucket, opts)
		if listErr != nil {
			return listErr
		}

		for _, obj := range page.Objects {
			rows = append(rows, []string{obj.Name, formatObjectSize(obj.Size), formatTime(obj.UploadedAt)})
		}

		if page.NextFileName == "" {
			break
		}

		opts.StartFileName = page.NextFileName
	}

	printTable(os.Stdout, []string{"NAME", "SIZE", "UPLOADED"}, rows)

	return nil
}

// parseInfoFlags converts repeated key=value flags into a metadata map.
func parseInfoFlags(entries []string) (map[string]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	info := make(map[string]string, len(entries))

	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid --info entry %q: expected key=value", entry)
		}

		info[key] = value
	}

	return info, nil
}

func runPut(cmd *cobra.Command, args []string) error {
	client, err := newDriverClient()
	if err != nil {
		return err
	}

	bucketName, localPath := args[0], args[1]

	objectName := filepath.Base(localPath)
	if len(args) == 3 {
		objectName = args[2]
	}

	contentType, err := cmd.Flags().GetString("content-type")
	if err != nil {
		return err
	}

	infoFlags, err := cmd.Flags().GetStringArray("info")
	if err != nil {
		return err
	}

	info, err := parseInfoFlags(infoFlags)
	if err != nil {
		return err
	}

	bucket, err := resolveBucket(cmd.Context(), client, bucketName)
	if err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	obj, err := client.Upload(cmd.Context(), bucket, objectName, f, b2.UploadOptions{
		ContentType: contentType,
		Info:        info,
	})
	if err != nil {
		return err
	}

	statusf(flagQuiet, "Uploaded %s (%s, id %s)\n", obj.Name, formatObjectSize(obj.Size), obj.FileID)

	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := newDriverClient()
	if err != nil {
		return err
	}

	bucketName, objectName := args[0], args[1]

	destPath := filepath.Base(objectName)
	if len(args) == 3 {
		destPath = args[2]
	}

	overwrite, err := cmd.Flags().GetBool("overwrite")
	if err != nil {
		return err
	}

	keepPartial, err := cmd.Flags().GetBool("keep-partial")
	if err != nil {
		return err
	}

	if err := client.DownloadToFile(cmd.Context(), bucketName, objectName, destPath, b2.DownloadOptions{
		Overwrite:     overwrite,
		KeepOnFailure: keepPartial,
	}); err != nil {
		return err
	}

	statusf(flagQuiet, "Downloaded %s to %s\n", objectName, destPath)

	return nil
}

func runRm(cmd *cobra.Command, args []string) error {
	client, err := newDriverClient()
	if err != nil {
		return err
	}

	bucket, err := resolveBucket(cmd.Context(), client, args[0])
	if err != nil {
		return err
	}

	obj, err := findObject(cmd.Context(), client, bucket, args[1])
	if err != nil {
		return err
	}

	ok, err := client.DeleteObject(cmd.Context(), obj.Name, obj.FileID)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("object %s was not deleted", obj.Name)
	}

	statusf(flagQuiet, "Deleted %s\n", obj.Name)

	return nil
}

func runStat(cmd *cobra.Command, args []string) error {
	client, err := newDriverClient()
	if err != nil {
		return err
	}

	obj, err := client.GetObject(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Name:     %s\n", obj.Name)
	fmt.Printf("File ID:  %s\n", obj.FileID)
	fmt.Printf("Size:     %s\n", formatObjectSize(obj.Size))

	if obj.ContentSHA1 != "" {
		fmt.Printf("SHA-1:    %s\n", obj.ContentSHA1)
	}

	if !obj.UploadedAt.IsZero() {
		fmt.Printf("Uploaded: %s\n", formatTime(obj.UploadedAt))
	}

	for key, value := range obj.Info {
		fmt.Printf("Info:     %s=%s\n", key, value)
	}

	return nil
}

func runHide(cmd *cobra.Command, args []string) error {
	client, err := newDriverClient()
	if err != nil {
		return err
	}

	bucket, err := resolveBucket(cmd.Context(), client, args[0])
	if err != nil {
		return err
	}

	obj, err := client.HideObject(cmd.Context(), bucket.ID, args[1])
	if err != nil {
		return err
	}

	statusf(flagQuiet, "Hid %s (marker id %s)\n", obj.Name, obj.FileID)

	return nil
}

func runVersions(cmd *cobra.Command, args []string) error {
	client, err := newDriverClient()
	if err != nil {
		return err
	}

	bucket, err := resolveBucket(cmd.Context(), client, args[0])
	if err != nil {
		return err
	}

	opts := b2.ListVersionsOptions{}

	if opts.StartFileName, err = cmd.Flags().GetString("start-name"); err != nil {
		return err
	}

	if opts.StartFileID, err = cmd.Flags().GetString("start-id"); err != nil {
		return err
	}

	if opts.MaxFileCount, err = cmd.Flags().GetInt("count"); err != nil {
		return err
	}

	var rows [][]string

	for {
		page, listErr := client.ListObjectVersions(cmd.Context(), bucket.ID, opts)
		if listErr != nil {
			return listErr
		}

		for _, obj := range page.Objects {
			rows = append(rows, []string{obj.Name, obj.FileID, formatObjectSize(obj.Size), formatTime(obj.UploadedAt)})
		}

		if page.NextFileName == "" && page.NextFileID == "" {
			break
		}

		opts.StartFileName = page.NextFileName
		opts.StartFileID = page.NextFileID
	}

	printTable(os.Stdout, []string{"NAME", "FILE ID", "SIZE", "UPLOADED"}, rows)

	return nil
}
