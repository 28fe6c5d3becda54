package batch

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/coachpo/scribe/errs"
	"github.com/coachpo/scribe/internal/gamemode"
)

type accountsFile struct {
	Accounts []accountEntry `yaml:"accounts"`
}

type accountEntry struct {
	Account string `yaml:"account"`
	Mode    string `yaml:"mode"`
}

// ReadRequests parses a YAML accounts document:
//
//	accounts:
//	  - account: Zelta
//	    mode: hardcore
//	  - account: Lynx Titan
func ReadRequests(r io.Reader) ([]Request, error) {
	var doc accountsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, errs.New("batch/accounts", errs.CodeInvalid,
			errs.WithMessage("decode accounts file"), errs.WithCause(err))
	}
	out := make([]Request, 0, len(doc.Accounts))
	for i, entry := range doc.Accounts {
		account := strings.TrimSpace(entry.Account)
		if account == "" {
			return nil, errs.New("batch/accounts", errs.CodeInvalid,
				errs.WithMessage(fmt.Sprintf("accounts[%d]: account required", i)))
		}
		mode, err := gamemode.ParseMode(entry.Mode)
		if err != nil {
			return nil, errs.New("batch/accounts", errs.CodeInvalid, errs.WithAccount(account),
				errs.WithMessage(fmt.Sprintf("accounts[%d]: %v", i, err)))
		}
		out = append(out, Request{Account: account, Mode: mode})
	}
	return out, nil
}

// LoadRequests reads an accounts document from path.
func LoadRequests(path string) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.New("batch/accounts", errs.CodeInvalid,
			errs.WithMessage("open accounts file"), errs.WithCause(err))
	}
	defer f.Close()
	return ReadRequests(f)
}
