package manifest

import (
	"fmt"
	"os"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

//Digest is one fs-verity digest from a build manifest
type Digest struct {
	HashAlg string
	Digest  []byte
}

//Digests maps file paths inside the APK to their fs-verity digests
type Digests map[string]Digest

//Parse decodes a serialized FSVerityDigests message:
//
//	message FSVerityDigests {
//	    map<string, FSVerityDigest> digests = 1;
//	}
//	message FSVerityDigest {
//	    string hash_alg = 1;
//	    bytes digest = 2;
//	}
//
//The payload only validates the structure and never re-serializes it,
//so the raw wire format is walked directly instead of going through
//generated bindings.
func Parse(data []byte) (Digests, error) {
	digests := make(Digests)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		if num == 1 && typ == protowire.BytesType {
			entry, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
			path, digest, err := parseEntry(entry)
			if err != nil {
				return nil, err
			}
			digests[path] = digest
			continue
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
	}
	return digests, nil
}

//parseEntry decodes one digests map entry (key=1, value=2)
func parseEntry(entry []byte) (string, Digest, error) {
	var path string
	var digest Digest
	for len(entry) > 0 {
		num, typ, n := protowire.ConsumeTag(entry)
		if n < 0 {
			return "", digest, protowire.ParseError(n)
		}
		entry = entry[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, entry)
			if n < 0 {
				return "", digest, protowire.ParseError(n)
			}
			entry = entry[n:]
			continue
		}
		value, n := protowire.ConsumeBytes(entry)
		if n < 0 {
			return "", digest, protowire.ParseError(n)
		}
		entry = entry[n:]
		switch num {
		case 1:
			if !utf8.Valid(value) {
				return "", digest, fmt.Errorf("digest entry key is not valid utf-8")
			}
			path = string(value)
		case 2:
			var err error
			if digest, err = parseDigest(value); err != nil {
				return "", digest, err
			}
		}
	}
	return path, digest, nil
}

//parseDigest decodes one FSVerityDigest message
func parseDigest(data []byte) (Digest, error) {
	var digest Digest
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return digest, protowire.ParseError(n)
		}
		data = data[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return digest, protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}
		value, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return digest, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			digest.HashAlg = string(value)
		case 2:
			digest.Digest = append([]byte(nil), value...)
		}
	}
	return digest, nil
}

//Load reads and parses the manifest at filePath
func Load(filePath string) (Digests, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read build manifest: %w", err)
	}
	digests, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid build manifest %s: %w", filePath, err)
	}
	return digests, nil
}
