package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// Small command-line client for the FileVault API. Intended for scripting
// and smoke tests, not as the primary interface.
//
//	filevault upload -user <uuid> file [file...]
//	filevault info -share <shareId>
//	filevault download -share <shareId> [-password <pw>] [-o <path>]

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	server := os.Getenv("FILEVAULT_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}

	var err error
	switch os.Args[1] {
	case "upload":
		err = cmdUpload(server, os.Args[2:])
	case "info":
		err = cmdInfo(server, os.Args[2:])
	case "download":
		err = cmdDownload(server, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: filevault <upload|info|download> [flags]")
	fmt.Fprintln(os.Stderr, "Set FILEVAULT_SERVER to override http://localhost:8080")
}

func cmdUpload(server string, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	user := fs.String("user", "", "acting user id")
	fs.Parse(args)
	if *user == "" || fs.NArg() == 0 {
		return fmt.Errorf("usage: upload -user <uuid> file [file...]")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, path := range fs.Args() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		part, err := mw.CreateFormFile("files", filepath.Base(path))
		if err != nil {
			f.Close()
			return err
		}
		if _, err := io.Copy(part, f); err != nil {
			f.Close()
			return err
		}
		f.Close()
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, server+"/api/files/upload", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-Id", *user)

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Files   []struct {
			ID           string `json:"id"`
			OriginalName string `json:"originalName"`
			ShareID      string `json:"shareId"`
		} `json:"files"`
	}
	if err := do(req, &resp); err != nil {
		return err
	}

	fmt.Println(resp.Message)
	for _, f := range resp.Files {
		fmt.Printf("  %s  %s\n", f.OriginalName, server+"/api/files/shared/"+f.ShareID)
	}
	return nil
}

func cmdInfo(server string, args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	share := fs.String("share", "", "share id")
	fs.Parse(args)
	if *share == "" {
		return fmt.Errorf("usage: info -share <shareId>")
	}

	req, err := http.NewRequest(http.MethodGet, server+"/api/files/shared/"+*share, nil)
	if err != nil {
		return err
	}

	var resp struct {
		File json.RawMessage `json:"file"`
	}
	if err := do(req, &resp); err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp.File, "", "  "); err != nil {
		return err
	}
	fmt.Println(pretty.String())
	return nil
}

func cmdDownload(server string, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	share := fs.String("share", "", "share id")
	password := fs.String("password", "", "file password, if protected")
	out := fs.String("o", "", "output path (default: server-provided name)")
	fs.Parse(args)
	if *share == "" {
		return fmt.Errorf("usage: download -share <shareId> [-password <pw>] [-o <path>]")
	}

	reqBody, _ := json.Marshal(map[string]string{"password": *password})
	req, err := http.NewRequest(http.MethodPost,
		server+"/api/files/shared/"+*share+"/download", bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return apiError(res)
	}

	name := *out
	if name == "" {
		name = attachmentName(res.Header.Get("Content-Disposition"))
		if name == "" {
			name = *share
		}
	}

	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := io.Copy(f, res.Body)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Saved %s (%d bytes)\n", name, n)
	return nil
}

func do(req *http.Request, out any) error {
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return apiError(res)
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func apiError(res *http.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil && body.Message != "" {
		return fmt.Errorf("%s (HTTP %d)", body.Message, res.StatusCode)
	}
	return fmt.Errorf("server returned HTTP %d", res.StatusCode)
}

// attachmentName extracts the filename from a Content-Disposition header.
func attachmentName(header string) string {
	const marker = `filename="`
	i := bytes.Index([]byte(header), []byte(marker))
	if i < 0 {
		return ""
	}
	rest := header[i+len(marker):]
	j := bytes.IndexByte([]byte(rest), '"')
	if j < 0 {
		return ""
	}
	return rest[:j]
}
