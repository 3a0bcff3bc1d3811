package drives

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Source provides the live domain XML. Satisfied by virtapi.Domain.
type Source interface {
	XMLDesc() (string, error)
}

// DomainCatalog recovers drive identity from the domain XML: the
// device target and source path come straight from each <disk>
// element, the image ID from the oVirt-style <serial>, and the
// storage-domain/volume pair from the source path's
// .../<domain>/images/<image>/<volume> tail.
type DomainCatalog struct {
	src Source
}

func NewDomainCatalog(src Source) *DomainCatalog {
	return &DomainCatalog{src: src}
}

type domainDoc struct {
	Devices struct {
		Disks []diskDoc `xml:"disk"`
	} `xml:"devices"`
}

type diskDoc struct {
	Type   string `xml:"type,attr"`
	Device string `xml:"device,attr"`
	Source struct {
		File string `xml:"file,attr"`
		Dev  string `xml:"dev,attr"`
	} `xml:"source"`
	Target struct {
		Dev string `xml:"dev,attr"`
	} `xml:"target"`
	Serial string `xml:"serial"`
}

func (c *DomainCatalog) Drives() ([]Info, error) {
	raw, err := c.src.XMLDesc()
	if err != nil {
		return nil, fmt.Errorf("read domain description: %w", err)
	}
	var doc domainDoc
	if err := xml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse domain description: %w", err)
	}

	var out []Info
	for _, d := range doc.Devices.Disks {
		if d.Device != "" && d.Device != "disk" {
			continue
		}
		if d.Type != TypeFile && d.Type != TypeBlock {
			continue
		}
		path := d.Source.File
		if d.Type == TypeBlock {
			path = d.Source.Dev
		}
		if path == "" || d.Target.Dev == "" {
			continue
		}
		info := Info{
			Name:  d.Target.Dev,
			Path:  path,
			Type:  d.Type,
			Image: d.Serial,
		}
		if domain, image, volume, ok := storageTriple(path); ok {
			info.Domain = domain
			info.Volume = volume
			if info.Image == "" {
				info.Image = image
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// storageTriple parses the .../<domain>/images/<image>/<volume> tail
// shared by file and block storage paths.
func storageTriple(path string) (domain, image, volume string, ok bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(parts) - 3; i > 0; i-- {
		if parts[i] == "images" {
			return parts[i-1], parts[i+1], parts[i+2], true
		}
	}
	return "", "", "", false
}
