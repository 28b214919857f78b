package ledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// sampleABI is the part of the marketplace contract this package talks to.
const sampleABI = `[
  {
    "type": "event",
    "name": "SampleCreated",
    "anonymous": false,
    "inputs": [
      {"name": "id", "type": "uint256", "indexed": false},
      {"name": "addressArtist", "type": "address", "indexed": false},
      {"name": "artist", "type": "string", "indexed": false},
      {"name": "title", "type": "string", "indexed": false},
      {"name": "category", "type": "string", "indexed": false},
      {"name": "description", "type": "string", "indexed": false},
      {"name": "numberOfCopies", "type": "uint256", "indexed": false},
      {"name": "priceNft", "type": "uint256", "indexed": false},
      {"name": "ipfsHash", "type": "string", "indexed": false}
    ]
  },
  {
    "type": "function",
    "name": "getOneSample",
    "stateMutability": "view",
    "inputs": [{"name": "_id", "type": "uint256"}],
    "outputs": [
      {
        "name": "",
        "type": "tuple",
        "internalType": "struct Omegaloops.Sample",
        "components": [
          {"name": "title", "type": "string"},
          {"name": "artist", "type": "string"},
          {"name": "category", "type": "string"},
          {"name": "description", "type": "string"},
          {"name": "numberOfCopies", "type": "uint256"},
          {"name": "priceNft", "type": "uint256"},
          {"name": "ipfsHash", "type": "string"}
        ]
      }
    ]
  },
  {
    "type": "function",
    "name": "createSample",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "_artist", "type": "string"},
      {"name": "_title", "type": "string"},
      {"name": "_category", "type": "string"},
      {"name": "_description", "type": "string"},
      {"name": "_numberOfCopies", "type": "uint256"},
      {"name": "_priceNft", "type": "uint256"},
      {"name": "_ipfsHash", "type": "string"}
    ],
    "outputs": []
  }
]`

const (
	eventSampleCreated = "SampleCreated"
	methodGetOneSample = "getOneSample"
	methodCreateSample = "createSample"
)

// sampleCreated mirrors the SampleCreated event fields.
type sampleCreated struct {
	Id             *big.Int
	AddressArtist  common.Address
	Artist         string
	Title          string
	Category       string
	Description    string
	NumberOfCopies *big.Int
	PriceNft       *big.Int
	IpfsHash       string
}

// sampleDetail mirrors the tuple returned by getOneSample.
type sampleDetail struct {
	Title          string
	Artist         string
	Category       string
	Description    string
	NumberOfCopies *big.Int
	PriceNft       *big.Int
	IpfsHash       string
}

func parseSampleABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(sampleABI))
}
