// Package devices holds the static table of supported devices, keyed by the
// fingerprint of their verified boot public key.
package devices

// Descriptor describes a supported device model and the floors its
// attestations must satisfy.
type Descriptor struct {
	// Name is the user-facing device name.
	Name string
	// MinAttestationVersion is the lowest acceptable attestation record version.
	MinAttestationVersion int
	// MinKeymasterVersion is the lowest acceptable Keymaster version.
	MinKeymasterVersion int
	// RequiresRollbackResistance marks devices whose keys must be rollback
	// resistant.
	RequiresRollbackResistance bool
}

// Catalog maps uppercase-hex SHA-256 fingerprints of verified boot keys to
// device descriptors. Stock holds devices running their factory OS, AltOS
// devices running a supported alternative OS. The catalog is immutable after
// construction.
type Catalog struct {
	stock map[string]Descriptor
	altOS map[string]Descriptor
}

// New builds a catalog from the given tables.
func New(stock, altOS map[string]Descriptor) *Catalog {
	return &Catalog{stock: stock, altOS: altOS}
}

// LookupStock returns the descriptor for a stock OS verified boot key.
func (c *Catalog) LookupStock(fingerprint string) (Descriptor, bool) {
	d, ok := c.stock[fingerprint]
	return d, ok
}

// LookupAltOS returns the descriptor for an alternative OS verified boot key.
func (c *Catalog) LookupAltOS(fingerprint string) (Descriptor, bool) {
	d, ok := c.altOS[fingerprint]
	return d, ok
}

const (
	bklL04    = "Huawei Honor View 10 (BKL-L04)"
	pixel2    = "Google Pixel 2"
	pixel2XL  = "Google Pixel 2 XL"
	smG960U   = "Samsung Galaxy S9 (SM-G960U)"
	smG965F   = "Samsung Galaxy S9+ (SM-G965F)"
	smG965MSM = "Samsung Galaxy S9+ (Snapdragon)"
	h3113     = "Sony Xperia XA2 (H3113)"
)

// Default returns the compiled-in device tables. Loading these from
// configuration is deliberately avoided so the trust policy cannot be relaxed
// without a rebuild.
func Default() *Catalog {
	return New(
		map[string]Descriptor{
			"5341E6B2646979A70E57653007A1F310169421EC9BDD9F1A5648F75ADE005AF1": {
				Name: bklL04, MinAttestationVersion: 2, MinKeymasterVersion: 3,
			},
			"1962B0538579FFCE9AC9F507C46AFE3B92055BAC7146462283C85C500BE78D82": {
				Name: pixel2, MinAttestationVersion: 2, MinKeymasterVersion: 3,
				RequiresRollbackResistance: true,
			},
			"171616EAEF26009FC46DC6D89F3D24217E926C81A67CE65D2E3A9DC27040C7AB": {
				Name: pixel2XL, MinAttestationVersion: 2, MinKeymasterVersion: 3,
				RequiresRollbackResistance: true,
			},
			"266869F7CF2FB56008EFC4BE8946C8F84190577F9CA688F59C72DD585E696488": {
				Name: smG960U, MinAttestationVersion: 1, MinKeymasterVersion: 2,
			},
			"D1C53B7A931909EC37F1939B14621C6E4FD19BF9079D195F86B3CEA47CD1F92D": {
				Name: smG965F, MinAttestationVersion: 1, MinKeymasterVersion: 2,
			},
			"A4A544C2CFBAEAA88C12360C2E4B44C29722FC8DBB81392A6C1FAEDB7BF63010": {
				Name: smG965MSM, MinAttestationVersion: 1, MinKeymasterVersion: 2,
			},
			"4285AD64745CC79B4499817F264DC16BF2AF5163AF6C328964F39E61EC84693E": {
				Name: h3113, MinAttestationVersion: 2, MinKeymasterVersion: 3,
				RequiresRollbackResistance: true,
			},
		},
		map[string]Descriptor{
			"36D067F8517A2284781B99A2984966BFF02D3F47310F831FCDCC4D792426B6DF": {
				Name: pixel2, MinAttestationVersion: 2, MinKeymasterVersion: 3,
				RequiresRollbackResistance: true,
			},
			"815DCBA82BAC1B1758211FF53CAA0B6883CB6C901BE285E1B291C8BDAA12DF75": {
				Name: pixel2XL, MinAttestationVersion: 2, MinKeymasterVersion: 3,
				RequiresRollbackResistance: true,
			},
		},
	)
}
