// Command certsign issues transfer and hold certificates offline with a
// registered signer key.
//
//	certsign -key $SIGNER_KEY -token 0x.. -caller 0x.. -method hold \
//	    -hold-id 0x.. -recipient 0x.. -notary 0x.. -partition issued -value 100 -time-arg 3600
package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"tokenhold/internal/certificate"
	"tokenhold/internal/hold"
	"tokenhold/internal/transfer"
	"tokenhold/pkg/domain"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, time.Now()); err != nil {
		fmt.Fprintln(os.Stderr, "certsign:", err)
		os.Exit(1)
	}
}

type output struct {
	Certificate string         `json:"certificate"`
	Signer      domain.Address `json:"signer"`
	Method      string         `json:"method"`
	Mode        string         `json:"mode"`
	Expiration  int64          `json:"expiration"`
	Nonce       *uint64        `json:"nonce,omitempty"`
	Salt        string         `json:"salt,omitempty"`
}

type options struct {
	key, mode, method         string
	chainID, nonce, timeArg   uint64
	domainName, salt          string
	ttl                       time.Duration
	token, caller             string
	holdID, sender, recipient string
	notary, partition, value  string
	secretHash, from, to      string
}

func run(args []string, stdout io.Writer, now time.Time) error {
	var o options
	fs := flag.NewFlagSet("certsign", flag.ContinueOnError)
	fs.StringVar(&o.key, "key", os.Getenv("CERTSIGN_KEY"), "hex secp256k1 signer key (or CERTSIGN_KEY)")
	fs.StringVar(&o.mode, "mode", "nonce", "certificate mode: nonce or salt")
	fs.StringVar(&o.method, "method", transfer.MethodTransferByPartition, "call the certificate authorises")
	fs.Uint64Var(&o.chainID, "chain-id", 1, "signing domain chain id")
	fs.StringVar(&o.domainName, "domain", "tokenhold", "signing domain name")
	fs.Uint64Var(&o.nonce, "nonce", 0, "signer nonce (nonce mode)")
	fs.StringVar(&o.salt, "salt", "", "32-byte hex salt (salt mode; random when empty)")
	fs.DurationVar(&o.ttl, "ttl", 5*time.Minute, "certificate validity")
	fs.StringVar(&o.token, "token", "", "token address")
	fs.StringVar(&o.caller, "caller", "", "address that will submit the call")
	fs.StringVar(&o.holdID, "hold-id", "", "hold id")
	fs.StringVar(&o.sender, "sender", "", "hold sender (holdFrom variants)")
	fs.StringVar(&o.recipient, "recipient", "", "hold recipient")
	fs.StringVar(&o.notary, "notary", "", "hold notary")
	fs.StringVar(&o.partition, "partition", "", "partition label or 32-byte hex")
	fs.StringVar(&o.value, "value", "0", "amount")
	fs.Uint64Var(&o.timeArg, "time-arg", 0, "duration seconds or expiration timestamp, per method")
	fs.StringVar(&o.secretHash, "secret-hash", "", "hold secret hash")
	fs.StringVar(&o.from, "from", "", "holder (operator transfers)")
	fs.StringVar(&o.to, "to", "", "transfer recipient")
	fs.SetOutput(io.Discard)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if o.key == "" {
		return errors.New("-key is required")
	}
	key, err := certificate.ParseIssuerKey(o.key)
	if err != nil {
		return err
	}
	token, err := domain.ParseAddress(o.token)
	if err != nil {
		return fmt.Errorf("-token: %w", err)
	}
	caller, err := domain.ParseAddress(o.caller)
	if err != nil {
		return fmt.Errorf("-caller: %w", err)
	}
	payload, err := buildPayload(o, caller)
	if err != nil {
		return err
	}

	issuer := certificate.NewIssuer(key, certificate.Domain{ChainID: o.chainID, Name: o.domainName})
	expiration := now.Add(o.ttl)
	out := output{
		Signer:     issuer.Address(),
		Method:     o.method,
		Mode:       o.mode,
		Expiration: expiration.Unix(),
	}
	var cert []byte
	switch o.mode {
	case "nonce":
		cert = issuer.IssueNonce(token, caller, payload, expiration, o.nonce)
		out.Nonce = &o.nonce
	case "salt":
		var salt [32]byte
		if o.salt == "" {
			if salt, err = certificate.NewSalt(); err != nil {
				return err
			}
		} else {
			parsed, err := domain.ParseBytes32(o.salt)
			if err != nil {
				return fmt.Errorf("-salt: %w", err)
			}
			salt = parsed
		}
		cert = issuer.IssueSalt(token, caller, payload, expiration, salt)
		out.Salt = "0x" + hex.EncodeToString(salt[:])
	default:
		return fmt.Errorf("unknown mode %q", o.mode)
	}
	out.Certificate = "0x" + hex.EncodeToString(cert)

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func buildPayload(o options, caller domain.Address) ([]byte, error) {
	value, err := domain.ParseAmount(o.value)
	if err != nil {
		return nil, fmt.Errorf("-value: %w", err)
	}
	var partition domain.Partition
	if o.partition != "" {
		if partition, err = domain.ParsePartition(o.partition); err != nil {
			return nil, fmt.Errorf("-partition: %w", err)
		}
	}

	switch o.method {
	case transfer.MethodTransferByPartition, transfer.MethodOperatorTransferByPartition:
		req := transfer.Request{Partition: partition, Value: value}
		if req.To, err = optionalAddress("to", o.to); err != nil {
			return nil, err
		}
		if o.method == transfer.MethodOperatorTransferByPartition {
			if req.From, err = optionalAddress("from", o.from); err != nil {
				return nil, err
			}
			req.Operator = caller
		}
		return transfer.Payload(req), nil

	case hold.MethodRenewHold, hold.MethodRenewHoldWithExpirationDate:
		id, err := domain.ParseHoldID(o.holdID)
		if err != nil {
			return nil, fmt.Errorf("-hold-id: %w", err)
		}
		return hold.RenewPayload(o.method, id, o.timeArg), nil

	case hold.MethodHold, hold.MethodHoldWithExpirationDate,
		hold.MethodHoldFrom, hold.MethodHoldFromWithExpirationDate,
		hold.MethodPreHoldFor, hold.MethodPreHoldForWithExpirationDate:
		req := hold.Request{Partition: partition, Value: value}
		if req.ID, err = domain.ParseHoldID(o.holdID); err != nil {
			return nil, fmt.Errorf("-hold-id: %w", err)
		}
		if req.Recipient, err = optionalAddress("recipient", o.recipient); err != nil {
			return nil, err
		}
		if req.Notary, err = optionalAddress("notary", o.notary); err != nil {
			return nil, err
		}
		if o.secretHash != "" {
			if req.SecretHash, err = domain.ParseBytes32(o.secretHash); err != nil {
				return nil, fmt.Errorf("-secret-hash: %w", err)
			}
		}
		sender, err := optionalAddress("sender", o.sender)
		if err != nil {
			return nil, err
		}
		return hold.CreatePayload(o.method, sender, req, o.timeArg), nil
	}
	return nil, fmt.Errorf("unknown method %q", o.method)
}

func optionalAddress(name, raw string) (domain.Address, error) {
	if raw == "" {
		return domain.ZeroAddress, nil
	}
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("-%s: %w", name, err)
	}
	return addr, nil
}
