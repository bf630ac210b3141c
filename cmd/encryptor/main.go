// Command encryptor prepares request payloads for the gateway: it generates
// a client keypair, encrypts a limit and an amount against the cluster
// public key under one nonce, and prints the JSON bodies ready to POST.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/whisprlabs/whisprgate/internal/crypto"
)

func main() {
	clusterKeyHex := flag.String("cluster-key", "", "cluster x25519 public key (32-byte hex, from GET /v1/cluster/key)")
	limit := flag.Uint64("limit", 0, "plaintext limit")
	amount := flag.Uint64("amount", 0, "plaintext swap amount")
	offset := flag.Uint64("offset", 1, "computation offset for the swap dispatch")
	flag.Parse()

	if *clusterKeyHex == "" {
		log.Fatal("missing -cluster-key")
	}
	raw, err := hexutil.Decode(*clusterKeyHex)
	if err != nil {
		log.Fatalf("invalid cluster key: %v", err)
	}
	clusterKey, err := crypto.PublicKeyFromBytes(raw)
	if err != nil {
		log.Fatalf("invalid cluster key: %v", err)
	}

	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		log.Fatalf("keypair: %v", err)
	}
	cipher, err := keys.SharedCipher(clusterKey)
	if err != nil {
		log.Fatalf("shared cipher: %v", err)
	}
	nonce, err := crypto.RandomNonce()
	if err != nil {
		log.Fatalf("nonce: %v", err)
	}

	cts, err := cipher.Encrypt([]uint64{*limit, *amount}, nonce)
	if err != nil {
		log.Fatalf("encrypt: %v", err)
	}

	limitBody, _ := json.MarshalIndent(map[string]string{
		"limit": cts[0].Hex(),
	}, "", "  ")
	swapBody, _ := json.MarshalIndent(map[string]interface{}{
		"computation_offset": *offset,
		"pub_key":            hexutil.Encode(keys.PublicKey().Bytes()),
		"nonce":              nonce.Hex(),
		"encrypted_amount":   cts[1].Hex(),
	}, "", "  ")

	fmt.Println("--- POST /v1/limit ---")
	fmt.Println(string(limitBody))
	fmt.Println("\n--- POST /v1/swaps ---")
	fmt.Println(string(swapBody))
	fmt.Println("\nkeep the private key to decrypt the result event:")
	fmt.Printf("  client_private_key: %s\n", hexutil.Encode(keys.PrivateKeyBytes()))
}
