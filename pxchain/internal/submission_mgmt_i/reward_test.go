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
	"testing"

	"github.com/choiwab/patient-x/pxchain/data_model"
	"github.com/choiwab/patient-x/pxchain/test_utils"
)

func TestComputeRewardAllBonuses(t *testing.T) {
	breakdown := ComputeReward(DefaultRewardConfig, test_utils.CreateTestMetadata("cystic_fibrosis"), 2)
	test_utils.AssertTrue(t, breakdown.Base == 1000, "Expected base 1000")
	test_utils.AssertTrue(t, breakdown.QualityBonus == 500, "Expected quality bonus")
	test_utils.AssertTrue(t, breakdown.TimeBonus == 300, "Expected time bonus")
	test_utils.AssertTrue(t, breakdown.RarityBonus == 1000, "Expected rarity bonus")
	test_utils.AssertTrue(t, breakdown.CitationBonus == 400, "Expected two citation bonuses")
	test_utils.AssertTrue(t, breakdown.Total == 3200, "Expected total 3200")
}

func TestComputeRewardBaseOnly(t *testing.T) {
	metadata := test_utils.CreateTestMetadata("oncology")
	metadata.EfficacyData = nil
	metadata.MonthsSinceDiscontinuation = 7
	breakdown := ComputeReward(DefaultRewardConfig, metadata, 0)
	test_utils.AssertTrue(t, breakdown.Total == 1000, "Expected base reward only")

	// the time bonus boundary is inclusive
	metadata.MonthsSinceDiscontinuation = 6
	test_utils.AssertTrue(t, ComputeReward(DefaultRewardConfig, metadata, 0).TimeBonus == 300, "Expected time bonus at six months")

	// safety signals alone do not earn the quality bonus
	metadata.EfficacyData = nil
	metadata.SafetySignals = []string{"rash"}
	test_utils.AssertTrue(t, ComputeReward(DefaultRewardConfig, metadata, 0).QualityBonus == 0, "Expected no quality bonus without efficacy data")
}

func TestComputeRewardIsPure(t *testing.T) {
	config := data_model.RewardConfig{Base: 10, CitationBonus: 1, RareDiseaseAreas: []string{"Cystic_Fibrosis"}, RarityBonus: 5}
	metadata := test_utils.CreateTestMetadata("cystic_fibrosis")
	first := ComputeReward(config, metadata, 3)
	second := ComputeReward(config, metadata, 3)
	test_utils.AssertTrue(t, first == second, "Expected the same breakdown for the same inputs")
	test_utils.AssertTrue(t, first.RarityBonus == 5, "Expected case-insensitive disease area match")
}
