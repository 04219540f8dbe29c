package contracts

import (
	"github.com/Masterminds/semver/v3"

	"github.com/smartcontractkit/lottery-deployments/deployment"
)

const (
	LotteryContract   deployment.ContractType = "Lottery"
	PriceFeedContract deployment.ContractType = "MockV3Aggregator"
)

var (
	// LotteryTypeAndVersion names the lottery contract built from the project artifact.
	LotteryTypeAndVersion = deployment.NewTypeAndVersion(LotteryContract, *semver.MustParse("1.0.0"))
	// PriceFeedMockTypeAndVersion names the aggregator mock shipped with the chainlink wrappers.
	PriceFeedMockTypeAndVersion = deployment.NewTypeAndVersion(PriceFeedContract, *semver.MustParse("0.6.0"))
)
