/*******************************************************************************
 *
 *
 * (c) Copyright Merative US L.P. and others 2020-2022
 *
 * SPDX-Licence-Identifier: Apache 2.0
 *
 *******************************************************************************/

package submission_mgmt_i

import (
	"strings"

	"github.com/choiwab/patient-x/pxchain/cached_stub"
	"github.com/choiwab/patient-x/pxchain/custom_errors"
	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/internal/common"
	"github.com/choiwab/patient-x/pxchain/internal/common/global"

	"github.com/pkg/errors"
)

// DefaultRewardConfig is used until SetRewardConfig is called.
var DefaultRewardConfig = data_model.RewardConfig{
	Base:            1000,
	QualityBonus:    500,
	TimeBonus:       300,
	TimeBonusMonths: 6,
	RarityBonus:     1000,
	RareDiseaseAreas: []string{
		"amyotrophic_lateral_sclerosis",
		"cystic_fibrosis",
		"duchenne_muscular_dystrophy",
		"huntington_disease",
	},
	CitationBonus: 200,
	MaxCitations:  50,
}

// ComputeReward derives the reward of a submission from its metadata and the number of
// citations it has. It has no side effects, so any reward can be re-derived for audit.
func ComputeReward(config data_model.RewardConfig, metadata data_model.OutcomeMetadata, citations int) data_model.RewardBreakdown {
	breakdown := data_model.RewardBreakdown{Base: config.Base, Citations: citations}
	if len(metadata.SafetySignals) > 0 && metadata.EfficacyData != nil {
		breakdown.QualityBonus = config.QualityBonus
	}
	if metadata.MonthsSinceDiscontinuation <= config.TimeBonusMonths {
		breakdown.TimeBonus = config.TimeBonus
	}
	for _, area := range config.RareDiseaseAreas {
		if strings.EqualFold(area, metadata.DiseaseArea) {
			breakdown.RarityBonus = config.RarityBonus
			break
		}
	}
	breakdown.CitationBonus = config.CitationBonus * uint64(citations)
	breakdown.Total = breakdown.Base + breakdown.QualityBonus + breakdown.TimeBonus + breakdown.RarityBonus + breakdown.CitationBonus
	return breakdown
}

// GetRewardConfig returns the reward schedule of the ledger.
func GetRewardConfig(stub cached_stub.CachedStubInterface) (data_model.RewardConfig, error) {
	config := data_model.RewardConfig{}
	found, err := common.GetJSON(stub, global.REWARD_CONFIG_KEY, &config, "RewardConfig")
	if err != nil || !found {
		return DefaultRewardConfig, err
	}
	return config, nil
}

// SetRewardConfig replaces the reward schedule. Rewards already paid are not affected.
func SetRewardConfig(stub cached_stub.CachedStubInterface, config data_model.RewardConfig) error {
	if config.Base == 0 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "base", Reason: "base reward must be positive"}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	if config.MaxCitations <= 0 {
		custom_err := &custom_errors.InvalidArgumentError{Argument: "max_citations", Reason: "max_citations must be positive"}
		logger.Errorf("%v", custom_err)
		return errors.WithStack(custom_err)
	}
	return common.PutJSON(stub, global.REWARD_CONFIG_KEY, config, "RewardConfig")
}
