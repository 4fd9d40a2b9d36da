/**
 * 服务:演示合约生成器
 * @author: sun977
 * @date: 2025.08.29
 * @description: 按主题生成演示用Solidity合约并通过快速扫描路径发起扫描
 * @func: Service
 */
package generator

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	scanmodel "chainscan/internal/model/scan"
	"chainscan/internal/pkg/logger"
	"chainscan/internal/pkg/utils"
)

// contractTheme 演示合约主题
type contractTheme struct {
	contract    string
	description string
	features    []string
}

// themes 可选主题集，生成时随机挑选
var themes = []contractTheme{
	{
		contract:    "Treasury",
		description: "manages pooled funds with configurable withdrawals",
		features: []string{
			"owner role for administration",
			"daily withdrawal limits",
			"event logging for deposits and withdrawals",
		},
	},
	{
		contract:    "SimpleDAO",
		description: "lightweight voting DAO that tracks proposals",
		features: []string{
			"proposal creation with descriptions",
			"quorum based on total member weight",
			"execution guard to prevent double spending",
		},
	},
	{
		contract:    "Escrow",
		description: "escrows funds between a buyer and seller",
		features: []string{
			"arbiter approval before release",
			"refund path for buyers",
			"timeouts to recover stuck funds",
		},
	},
}

// GeneratedContract 一次生成的合约产物
type GeneratedContract struct {
	Name    string
	Path    string
	Content string
}

// QuickScanner 快速扫描契约
// 生成的合约通过该入口建项目并发起扫描
type QuickScanner interface {
	QuickScan(ctx context.Context, req *scanmodel.QuickScanRequest) (*scanmodel.Project, *scanmodel.Scan, error)
}

// Service 演示合约生成器
type Service struct {
	scanner   QuickScanner
	outputDir string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewService 创建合约生成器
func NewService(scanner QuickScanner, outputDir string) *Service {
	if outputDir == "" {
		outputDir = "data/generated"
	}
	return &Service{
		scanner:   scanner,
		outputDir: outputDir,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateContract 生成一份演示合约并写入生成目录
// 合约名带随机后缀，避免重复生成时项目重名
func (s *Service) GenerateContract() (*GeneratedContract, error) {
	s.rngMu.Lock()
	theme := themes[s.rng.Intn(len(themes))]
	s.rngMu.Unlock()

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	name := theme.contract + suffix
	content := renderContract(name, theme)

	path := filepath.Join(s.outputDir, name+".sol")
	if err := utils.WriteFile(path, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("write generated contract: %w", err)
	}
	return &GeneratedContract{Name: name, Path: path, Content: content}, nil
}

// GenerateAndScan 生成演示合约、创建项目并发起默认工具集扫描
func (s *Service) GenerateAndScan(ctx context.Context) (*scanmodel.ContractGenerationResponse, error) {
	contract, err := s.GenerateContract()
	if err != nil {
		return nil, err
	}

	project, scanRecord, err := s.scanner.QuickScan(ctx, &scanmodel.QuickScanRequest{
		Project: scanmodel.QuickScanProject{
			Name: "Generated " + contract.Name,
			Path: contract.Path,
			Meta: map[string]interface{}{"generated": true},
		},
		Target: contract.Path,
	})
	if err != nil {
		return nil, err
	}

	logger.LogBusinessOperation("generate_and_scan", "success", "generated contract admitted for scan", map[string]interface{}{
		"contract":   contract.Name,
		"project_id": project.ID,
		"scan_id":    scanRecord.ID,
	})
	return &scanmodel.ContractGenerationResponse{
		ContractName: contract.Name,
		ContractPath: contract.Path,
		Project:      scanmodel.NewProjectInfo(project),
		Scan:         scanmodel.NewScanInfo(scanRecord),
	}, nil
}

// renderContract 渲染合约源码
// 生成的合约刻意保持简单，仅用于扫描和模糊测试演示
func renderContract(name string, theme contractTheme) string {
	var features strings.Builder
	for _, f := range theme.features {
		features.WriteString("\n// - " + f)
	}

	return fmt.Sprintf(`// Auto-generated smart contract: %s style
// Inspired by: %s
// Features:%s

// NOTE: This contract is intentionally simple and meant for fuzzing demonstrations.
// Do not deploy to production networks.
pragma solidity ^0.8.20;

contract %s {
    address public owner;
    mapping(address => uint256) public balances;
    bool public paused;

    event Deposit(address indexed from, uint256 amount);
    event Withdraw(address indexed to, uint256 amount);

    modifier onlyOwner() {
        require(msg.sender == owner, "not owner");
        _;
    }

    modifier notPaused() {
        require(!paused, "paused");
        _;
    }

    constructor() {
        owner = msg.sender;
    }

    function pause() external onlyOwner {
        paused = true;
    }

    function unpause() external onlyOwner {
        paused = false;
    }

    function deposit() external payable notPaused {
        balances[msg.sender] += msg.value;
        emit Deposit(msg.sender, msg.value);
    }

    function withdraw(uint256 amount) external notPaused {
        require(amount > 0, "amount");
        uint256 balance = balances[msg.sender];
        require(balance >= amount, "insufficient");
        unchecked {
            balances[msg.sender] = balance - amount;
        }
        (bool ok, ) = msg.sender.call{value: amount}("");
        require(ok, "send failed");
        emit Withdraw(msg.sender, amount);
    }

    function emergencyDrain(address payable target) external onlyOwner {
        uint256 bal = address(this).balance;
        (bool ok, ) = target.call{value: bal}("");
        require(ok, "drain failed");
    }
}
`, theme.contract, theme.description, features.String(), name)
}
