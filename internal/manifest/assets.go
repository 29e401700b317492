package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/DonovanMods/flowupdater/internal/domain"
)

// DefaultResourcesURL serves asset objects by hash
const DefaultResourcesURL = "https://resources.download.minecraft.net"

type assetObject struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

type namedObject struct {
	name string
	assetObject
}

// ParseAssetIndex decodes a Minecraft asset index:
//
//	{"objects": {"<name>": {"hash": "<sha1>", "size": 1}}, "virtual": false, "map_to_resources": false}
//
// Every object is placed at assets/objects/<hh>/<hash>. Virtual indexes also place each
// object at assets/virtual/legacy/<name>, and map_to_resources indexes at resources/<name>.
// Objects keep the order of the document. An empty resourcesURL uses DefaultResourcesURL.
func ParseAssetIndex(r io.Reader, resourcesURL string) (*domain.AssetIndex, error) {
	if resourcesURL == "" {
		resourcesURL = DefaultResourcesURL
	}
	resourcesURL = strings.TrimRight(resourcesURL, "/")

	objects, virtual, mapToResources, err := decodeAssetIndex(json.NewDecoder(r))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing asset index: %v", domain.ErrInvalidConfig, err)
	}

	index := domain.NewAssetIndex()
	add := func(localPath string, obj namedObject) error {
		if existing, ok := index.Get(localPath); ok {
			if strings.EqualFold(existing.Hash, obj.Hash) {
				return nil
			}
			return fmt.Errorf("%w: %s listed with two hashes", domain.ErrDuplicateAsset, localPath)
		}
		return index.Add(domain.AssetDownloadable{
			URL:       resourcesURL + "/" + obj.Hash[:2] + "/" + obj.Hash,
			LocalPath: localPath,
			Hash:      obj.Hash,
			Size:      obj.Size,
		})
	}

	for _, obj := range objects {
		obj.Hash = strings.ToLower(obj.Hash)
		if !isSHA1(obj.Hash) {
			return nil, fmt.Errorf("%w: asset %s has invalid hash %q", domain.ErrInvalidConfig, obj.name, obj.Hash)
		}
		name, err := cleanName(obj.name)
		if err != nil {
			return nil, err
		}

		if err := add(path.Join("assets/objects", obj.Hash[:2], obj.Hash), obj); err != nil {
			return nil, err
		}
		if virtual {
			if err := add(path.Join("assets/virtual/legacy", name), obj); err != nil {
				return nil, err
			}
		}
		if mapToResources {
			if err := add(path.Join("resources", name), obj); err != nil {
				return nil, err
			}
		}
	}

	return index, nil
}

// decodeAssetIndex walks the document with tokens so object order survives
func decodeAssetIndex(dec *json.Decoder) (objects []namedObject, virtual, mapToResources bool, err error) {
	if err = expectDelim(dec, '{'); err != nil {
		return
	}
	for dec.More() {
		var key string
		if key, err = stringToken(dec); err != nil {
			return
		}
		switch key {
		case "objects":
			if err = expectDelim(dec, '{'); err != nil {
				return
			}
			for dec.More() {
				var obj namedObject
				if obj.name, err = stringToken(dec); err != nil {
					return
				}
				if err = dec.Decode(&obj.assetObject); err != nil {
					return
				}
				objects = append(objects, obj)
			}
			if err = expectDelim(dec, '}'); err != nil {
				return
			}
		case "virtual":
			err = dec.Decode(&virtual)
		case "map_to_resources":
			err = dec.Decode(&mapToResources)
		default:
			var skip json.RawMessage
			err = dec.Decode(&skip)
		}
		if err != nil {
			return
		}
	}
	err = expectDelim(dec, '}')
	return
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected key, got %v", tok)
	}
	return s, nil
}

// cleanName rejects asset names that would escape their directory
func cleanName(name string) (string, error) {
	cleaned := path.Clean("/" + name)[1:]
	if cleaned == "" || cleaned != name {
		return "", fmt.Errorf("%w: unsafe asset name %q", domain.ErrInvalidConfig, name)
	}
	return cleaned, nil
}
