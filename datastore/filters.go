package datastore

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// The filters below compose with AddressRefStore.Filter, for example:
//
//	refs := store.Filter(
//		AddressRefByChainSelector(selector),
//		AddressRefByType("TokenLottery"),
//	)

func addressRefFilter(keep func(record AddressRef) bool) FilterFunc {
	return func(records []AddressRef) []AddressRef {
		filtered := make([]AddressRef, 0, len(records))
		for _, record := range records {
			if keep(record) {
				filtered = append(filtered, record)
			}
		}

		return filtered
	}
}

// AddressRefByAddress keeps records with the given address, compared case-insensitively.
func AddressRefByAddress(address string) FilterFunc {
	return addressRefFilter(func(record AddressRef) bool {
		return strings.EqualFold(record.Address, address)
	})
}

// AddressRefByChainSelector keeps records of the given chain.
func AddressRefByChainSelector(chainSelector uint64) FilterFunc {
	return addressRefFilter(func(record AddressRef) bool {
		return record.ChainSelector == chainSelector
	})
}

// AddressRefByType keeps records of the given contract type.
func AddressRefByType(contractType ContractType) FilterFunc {
	return addressRefFilter(func(record AddressRef) bool {
		return record.Type == contractType
	})
}

// AddressRefByVersion keeps records of the given version.
func AddressRefByVersion(version *semver.Version) FilterFunc {
	return addressRefFilter(func(record AddressRef) bool {
		return versionsEqual(record.Version, version)
	})
}

// AddressRefByQualifier keeps records with the given qualifier.
func AddressRefByQualifier(qualifier string) FilterFunc {
	return addressRefFilter(func(record AddressRef) bool {
		return record.Qualifier == qualifier
	})
}

// AddressRefByLabel keeps records carrying the given label.
func AddressRefByLabel(label string) FilterFunc {
	return addressRefFilter(func(record AddressRef) bool {
		return record.Labels.Contains(label)
	})
}
