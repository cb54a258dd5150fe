package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newBucketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buckets",
		Short: "List buckets in the account",
		Args:  cobra.NoArgs,
		RunE:  runBuckets,
	}
}

func newMkbucketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkbucket <name>",
		Short: "Create a bucket",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkbucket,
	}

	cmd.Flags().String("type", "", `bucket type: "allPrivate" (default) or "allPublic"`)

	return cmd
}

func newRmbucketCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rmbucket <name>",
		Short: "Delete an empty bucket",
		Args:  cobra.ExactArgs(1),
		RunE:  runRmbucket,
	}
}

func runBuckets(cmd *cobra.Command, _ []string) error {
	client, err := newDriverClient()
	if err != nil {
		return err
	}

	buckets, err := client.ListBuckets(cmd.Context())
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []string{b.Name, b.Type, b.ID})
	}

	printTable(os.Stdout, []string{"NAME", "TYPE", "ID"}, rows)

	return nil
}

func runMkbucket(cmd *cobra.Command, args []string) error {
	client, err := newDriverClient()
	if err != nil {
		return err
	}

	bucketType, err := cmd.Flags().GetString("type")
	if err != nil {
		return err
	}

	bucket, err := client.CreateBucket(cmd.Context(), args[0], bucketType)
	if err != nil {
		return err
	}

	statusf(flagQuiet, "Created bucket %s (%s)\n", bucket.Name, bucket.ID)

	return nil
}

func runRmbucket(cmd *cobra.Command, args []string) error {
	client, err := newDriverClient()
	if err != nil {
		return err
	}

	bucket, err := resolveBucket(cmd.Context(), client, args[0])
	if err != nil {
		return err
	}

	ok, err := client.DeleteBucket(cmd.Context(), bucket.ID)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("bucket %s was not deleted (is it empty?)", bucket.Name)
	}

	statusf(flagQuiet, "Deleted bucket %s\n", bucket.Name)

	return nil
}
